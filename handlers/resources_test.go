package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMethods(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")

	card := map[string]any{
		"payment_type": "card",
		"card_number":  "4111 1111 1111 1111",
		"card_holder":  "Ada Lovelace",
		"expiry_month": 12,
		"expiry_year":  2099,
	}
	w := env.do(http.MethodPost, "/v1/payments", s.Access, card)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "**** **** **** 1111", field(body, "payment", "card_number"))
	assert.Equal(t, "visa", field(body, "payment", "card_type"))
	assert.Equal(t, true, field(body, "payment", "is_default"))
	cardID := idOf(body, "payment")

	mixed := map[string]any{"payment_type": "paypal", "paypal_email": "ada@example.com", "card_holder": "Ada Lovelace"}
	w = env.do(http.MethodPost, "/v1/payments", s.Access, mixed)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	badLuhn := map[string]any{"payment_type": "card", "card_number": "4111111111111112", "card_holder": "Ada", "expiry_month": 1, "expiry_year": 2099}
	w = env.do(http.MethodPost, "/v1/payments", s.Access, badLuhn)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	expired := map[string]any{"payment_type": "card", "card_number": "4111111111111111", "card_holder": "Ada", "expiry_month": 1, "expiry_year": 2001}
	w = env.do(http.MethodPost, "/v1/payments", s.Access, expired)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/v1/payments", s.Access, map[string]any{"payment_type": "paypal", "paypal_email": "ada@example.com", "is_default": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, fmt.Sprintf("/v1/payments/%d", cardID), s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, field(decode(t, w), "payment", "is_default"))

	w = env.do(http.MethodGet, "/v1/payments", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	other := env.register("other@example.com", "+14155550102")
	w = env.do(http.MethodDelete, fmt.Sprintf("/v1/payments/%d", cardID), other.Access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodDelete, fmt.Sprintf("/v1/payments/%d", cardID), s.Access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")

	w := env.do(http.MethodGet, "/v1/profiles/me", s.Access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/v1/profiles", s.Access, map[string]any{"about": "hi", "language": "en"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.do(http.MethodPost, "/v1/profiles", s.Access, map[string]any{"about": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPut, "/v1/profiles/me", s.Access, map[string]any{"location": "Lisbon"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Lisbon", field(decode(t, w), "profile", "location"))

	w = env.do(http.MethodDelete, "/v1/profiles/me", s.Access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDriversAndVehicles(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")
	f := env.seedFleet()
	d := f.Driver.Access

	w := env.do(http.MethodGet, fmt.Sprintf("/v1/drivers/%d", f.DriverID), s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "pending", field(body, "driver", "verification_status"))
	assert.Equal(t, float64(f.Driver.UserID), field(body, "driver", "user_id"))
	assert.Len(t, body["vehicles"], 1)

	second := map[string]any{
		"driver_id":          f.DriverID,
		"vehicle_type":       "suv",
		"make":               "Honda",
		"model":              "CR-V",
		"year":               2022,
		"license_plate":      "XYZ-987",
		"passenger_capacity": 5,
		"base_fare":          3,
		"per_minute_rate":    0.6,
		"per_kilometer_rate": 1.4,
	}
	w = env.do(http.MethodPost, "/v1/vehicles", s.Access, second)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/v1/vehicles", d, second)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Driver already has an active vehicle", decode(t, w)["error"])

	second["status"] = "inactive"
	w = env.do(http.MethodPost, "/v1/vehicles", d, second)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inactiveID := idOf(decode(t, w), "vehicle")

	w = env.do(http.MethodPut, fmt.Sprintf("/v1/vehicles/%d", inactiveID), d, map[string]any{"status": "active"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPut, fmt.Sprintf("/v1/vehicles/%d", f.VehicleID), d, map[string]any{"per_minute_rate": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, fmt.Sprintf("/v1/vehicles/%d", f.VehicleID), s.Access, map[string]any{"per_minute_rate": 0.1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodDelete, fmt.Sprintf("/v1/vehicles/%d", inactiveID), s.Access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d/availability", f.DriverID), d, map[string]any{"status": "napping"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d/availability", f.DriverID), s.Access, map[string]any{"status": "available"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d/availability", f.DriverID), d, map[string]any{"status": "available"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/v1/drivers?availability=available", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d/location", f.DriverID), s.Access, map[string]any{"lat": 38.72, "lng": -9.14})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d/location", f.DriverID), d, map[string]any{"lat": 38.72, "lng": -9.14})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 38.72, field(decode(t, w), "driver", "current_lat"))

	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d", f.DriverID), s.Access, map[string]any{"about_me": "hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodDelete, fmt.Sprintf("/v1/drivers/%d", f.DriverID), s.Access, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// staff manage any driver
	ops := env.staff("ops@example.com", "+14155550199")
	w = env.do(http.MethodPut, fmt.Sprintf("/v1/drivers/%d/availability", f.DriverID), ops.Access, map[string]any{"status": "offline"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(http.MethodDelete, fmt.Sprintf("/v1/vehicles/%d", inactiveID), ops.Access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDriverVerification(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")
	ops := env.staff("ops@example.com", "+14155550199")
	f := env.seedFleet()
	d := f.Driver.Access
	path := fmt.Sprintf("/v1/drivers/%d/verification", f.DriverID)

	// drivers cannot verify themselves
	w := env.do(http.MethodPut, path, d, map[string]any{"status": "verified"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = env.do(http.MethodPut, path, d, map[string]any{"status": "verified", "actor": "reviewer"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodPut, path, s.Access, map[string]any{"status": "rejected"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "rejected"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// only the driver may resubmit
	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "pending", "actor": "driver"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodPut, path, d, map[string]any{"status": "pending"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "verified"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "verified", field(decode(t, w), "driver", "verification_status"))

	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDuplicateDriverContact(t *testing.T) {
	env := newTestEnv(t)
	first := env.register("dan@example.com", "+14155550101")
	driver := map[string]any{
		"first_name":     "Dan",
		"last_name":      "Driver",
		"email":          "dan@example.com",
		"phone":          "+14155559999",
		"license_number": "LIC-1",
	}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/drivers", first.Access, driver).Code)

	// one driver per account
	driver["email"] = "dan.second@example.com"
	driver["phone"] = "+14155557777"
	w := env.do(http.MethodPost, "/v1/drivers", first.Access, driver)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Your account is already linked to a driver", decode(t, w)["error"])

	second := env.register("dana@example.com", "+14155550102")
	driver["email"] = "dan@example.com"
	driver["phone"] = "+14155558888"
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/v1/drivers", second.Access, driver).Code)

	driver["email"] = "dana@example.com"
	driver["phone"] = "+14155559999"
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/v1/drivers", second.Access, driver).Code)

	driver["phone"] = "+14155558888"
	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/drivers", second.Access, driver).Code)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/settings", s.Access, nil).Code)

	w := env.do(http.MethodPost, "/v1/settings", s.Access, map[string]any{"notifications_enabled": false, "currency": "eur"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "EUR", field(body, "settings", "currency"))
	assert.Equal(t, false, field(body, "settings", "notifications_enabled"))
	assert.Equal(t, "en", field(body, "settings", "language"))

	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/v1/settings", s.Access, map[string]any{}).Code)

	w = env.do(http.MethodPut, "/v1/settings", s.Access, map[string]any{"dark_mode": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/v1/settings", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, field(body, "settings", "dark_mode"))
	assert.Equal(t, false, field(body, "settings", "notifications_enabled"))

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, "/v1/settings", s.Access, map[string]any{"currency": "EURO"}).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/v1/settings", s.Access, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/v1/settings", s.Access, nil).Code)
}

func TestSupportTickets(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")

	w := env.do(http.MethodPost, "/v1/tickets", s.Access, map[string]any{"subject": "Lost item", "description": "Left my umbrella"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "open", field(body, "ticket", "status"))
	assert.Equal(t, "medium", field(body, "ticket", "priority"))
	path := fmt.Sprintf("/v1/tickets/%d", idOf(body, "ticket"))

	w = env.do(http.MethodPost, "/v1/tickets", s.Access, map[string]any{"subject": "x", "description": "y", "priority": "asap"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// users cannot resolve their own tickets
	w = env.do(http.MethodPut, path, s.Access, map[string]any{"status": "resolved"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodPut, path, s.Access, map[string]any{"status": "in_progress", "actor": "agent"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	ops := env.staff("ops@example.com", "+14155550199")
	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "in_progress", "priority": "high"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "high", field(decode(t, w), "ticket", "priority"))

	w = env.do(http.MethodPut, path, ops.Access, map[string]any{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(http.MethodPut, path, s.Access, map[string]any{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode(t, w)["valid_next_states"])

	w = env.do(http.MethodGet, "/v1/tickets?status=closed", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	other := env.register("other@example.com", "+14155550102")
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, path, other.Access, map[string]any{"subject": "mine now"}).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, path, other.Access, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, path, s.Access, nil).Code)
}

func TestRecentLocationsUpsert(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")
	home := map[string]any{"location_name": "Home", "address": "1 Main St", "lat": 40.1, "lng": -74.2}
	work := map[string]any{"location_name": "Work", "address": "9 Office Rd", "lat": 40.2, "lng": -74.1}

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/recent-locations", s.Access, home).Code)
	env.advance(time.Second)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/v1/recent-locations", s.Access, work).Code)
	env.advance(time.Second)

	w := env.do(http.MethodPost, "/v1/recent-locations", s.Access, home)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), field(decode(t, w), "recent_location", "frequency"))

	w = env.do(http.MethodGet, "/v1/recent-locations", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["count"])
	first := body["recent_locations"].([]any)[0].(map[string]any)
	assert.Equal(t, "Home", first["location_name"])

	w = env.do(http.MethodGet, "/v1/recent-locations?limit=1", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/v1/recent-locations?limit=zero", s.Access, nil).Code)
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")
	f := env.seedFleet()
	other := env.seedFleet()
	driverID, vehicleID := f.DriverID, f.VehicleID

	w := env.do(http.MethodPost, "/v1/favorites", s.Access, map[string]any{"driver_id": driverID, "vehicle_id": other.VehicleID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/v1/favorites", s.Access, map[string]any{"driver_id": 4242})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/v1/favorites", s.Access, map[string]any{"driver_id": driverID, "vehicle_id": vehicleID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	favID := idOf(decode(t, w), "favorite")

	w = env.do(http.MethodPost, "/v1/favorites", s.Access, map[string]any{"driver_id": driverID})
	assert.Equal(t, http.StatusConflict, w.Code)

	stranger := env.register("other@example.com", "+14155550102")
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, fmt.Sprintf("/v1/favorites/%d", favID), stranger.Access, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, fmt.Sprintf("/v1/favorites/%d", favID), s.Access, nil).Code)

	w = env.do(http.MethodGet, "/v1/favorites", s.Access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestCities(t *testing.T) {
	env := newTestEnv(t)
	s := env.register("rider@example.com", "+14155550101")
	ops := env.staff("ops@example.com", "+14155550199")
	cities := map[string]any{"cities": []map[string]any{{"name": "Lisbon"}, {"name": "Porto"}}}

	w := env.do(http.MethodPost, "/v1/cities", s.Access, cities)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/v1/cities", ops.Access, cities)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/v1/cities?search=Lis", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/v1/cities", "", map[string]any{"cities": []any{}}).Code)
}

func TestHealthAndStateMachines(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Arrively API", body["service"])

	w = env.do(http.MethodGet, "/v1/state-machines", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	machines := decode(t, w)["machines"].([]any)
	require.Len(t, machines, 3)
	assert.Equal(t, "requested", machines[0].(map[string]any)["initial"])

	w = env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "arrively_http_requests_total")

	w = env.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
