package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arrively-api/auth"
	"arrively-api/config"
	"arrively-api/handlers"
	"arrively-api/middleware"
	"arrively-api/models"
	"arrively-api/routes"
)

var seq atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
	now    time.Time
}

func newTestEnv(t *testing.T, opts ...func(*handlers.Deps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := config.OpenDatabase(ctx, config.DatabaseConfig{
		URL:            fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		ConnectTimeout: 5 * time.Second,
	}, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { config.CloseDatabase(db) })
	_, err = config.Migrate(ctx, db)
	require.NoError(t, err)

	env := &testEnv{t: t, db: db, now: time.Now().UTC().Truncate(time.Second)}
	clock := func() time.Time { return env.now }
	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	}, auth.WithClock(clock))

	deps := handlers.Deps{
		DB:      db,
		Tokens:  tokens,
		Hasher:  auth.NewPasswordHasher(bcrypt.MinCost),
		Metrics: middleware.NewMetrics(prometheus.NewRegistry()),
		Clock:   clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.router = routes.NewRouter(routes.Options{
		Deps:             deps,
		AuthRateLimitRPM: 1000,
	})
	return env
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(e.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// field walks nested JSON objects, e.g. field(body, "ride", "status").
func field(body map[string]any, path ...string) any {
	var cur any = body
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func idOf(body map[string]any, key string) uint {
	v, _ := field(body, key, "id").(float64)
	return uint(v)
}

type session struct {
	UserID  uint
	Access  string
	Refresh string
}

func (e *testEnv) register(email, phone string) session {
	e.t.Helper()
	w := e.do(http.MethodPost, "/v1/users/register", "", map[string]any{
		"email":      email,
		"password":   "s3cret-pass",
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"phone":      phone,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(e.t, w)
	return session{
		UserID:  idOf(body, "user"),
		Access:  body["access_token"].(string),
		Refresh: body["refresh_token"].(string),
	}
}

func (e *testEnv) login(email string) session {
	e.t.Helper()
	w := e.do(http.MethodPost, "/v1/users/login", "", map[string]any{"email": email, "password": "s3cret-pass"})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	body := decode(e.t, w)
	return session{
		UserID:  idOf(body, "user"),
		Access:  body["access_token"].(string),
		Refresh: body["refresh_token"].(string),
	}
}

// staff registers an account, promotes it and signs in again so the tokens
// carry the staff role.
func (e *testEnv) staff(email, phone string) session {
	e.t.Helper()
	s := e.register(email, phone)
	require.NoError(e.t, e.db.Model(&models.User{}).Where("id = ?", s.UserID).
		Updates(map[string]any{"role": models.RoleStaff, "token_version": gorm.Expr("token_version + 1")}).Error)
	return e.login(email)
}

// fleet is a driver with one active vehicle, plus the account linked to it.
type fleet struct {
	DriverID  uint
	VehicleID uint
	Driver    session
}

func defaultRates() map[string]any {
	return map[string]any{
		"base_fare":          2.5,
		"per_minute_rate":    0.5,
		"per_kilometer_rate": 1.2,
	}
}

// seedFleet registers a driver account, links a driver to it and gives the
// driver one active vehicle with the default rates.
func (e *testEnv) seedFleet() fleet {
	e.t.Helper()
	return e.seedFleetWith(defaultRates())
}

func (e *testEnv) seedFleetWith(rates map[string]any) fleet {
	e.t.Helper()
	n := seq.Add(1)
	account := e.register(fmt.Sprintf("driver-account-%d@example.com", n), fmt.Sprintf("+1666%07d", n))
	w := e.do(http.MethodPost, "/v1/drivers", account.Access, map[string]any{
		"first_name":     "Dan",
		"last_name":      "Driver",
		"email":          fmt.Sprintf("driver-%d@example.com", n),
		"phone":          fmt.Sprintf("+1555%07d", n),
		"license_number": "LIC-123",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	driverID := idOf(decode(e.t, w), "driver")

	vehicle := map[string]any{
		"driver_id":          driverID,
		"vehicle_type":       "sedan",
		"make":               "Toyota",
		"model":              "Corolla",
		"year":               2021,
		"license_plate":      "ABC-123",
		"passenger_capacity": 4,
	}
	for k, v := range rates {
		vehicle[k] = v
	}
	w = e.do(http.MethodPost, "/v1/vehicles", account.Access, vehicle)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return fleet{
		DriverID:  driverID,
		VehicleID: idOf(decode(e.t, w), "vehicle"),
		Driver:    account,
	}
}
