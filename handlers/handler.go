package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arrively-api/apperr"
	"arrively-api/auth"
	"arrively-api/middleware"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	db       *gorm.DB
	tokens   *auth.TokenManager
	hasher   *auth.PasswordHasher
	denylist auth.Denylist
	ids      auth.IdentityStore
	metrics  *middleware.Metrics
	log      *zap.Logger
	now      func() time.Time
}

type Deps struct {
	DB         *gorm.DB
	Tokens     *auth.TokenManager
	Hasher     *auth.PasswordHasher
	Denylist   auth.Denylist
	Identities auth.IdentityStore
	Metrics    *middleware.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		db:       d.DB,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		denylist: d.Denylist,
		ids:      d.Identities,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      d.Clock,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.hasher == nil {
		h.hasher = auth.NewPasswordHasher(0)
	}
	if h.denylist == nil {
		h.denylist = auth.NewDBDenylist(d.DB)
	}
	if h.ids == nil {
		h.ids = auth.NewDBIdentityStore(d.DB)
	}
	return h
}

// fail writes err as {"error": ...}. Causes of internal errors are only logged.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

// bind decodes and validates the JSON body, answering 400 on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return false
	}
	return true
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// lookupErr classifies an error from a First/Take lookup.
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return apperr.Internal("failed to load "+what, err)
}

// writeErr classifies an error from an insert or update.
func writeErr(err error, action, conflict string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict(conflict)
	}
	return apperr.Internal("failed to "+action, err)
}

// exists reports whether any row of model matches the query.
func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
