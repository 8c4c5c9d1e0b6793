package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"arrively-api/statemachine"
)

const (
	ServiceName = "Arrively API"
	Version     = "1.0.0"
)

// Health pings the database
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.Sugar().Warnw("health check failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": ServiceName,
		"version": Version,
	})
}

// StateMachines documents every status machine the API enforces
func (h *Handler) StateMachines(c *gin.Context) {
	machines := make([]statemachine.Description, 0, len(statemachine.All()))
	for _, m := range statemachine.All() {
		machines = append(machines, m.Describe())
	}
	c.JSON(http.StatusOK, gin.H{"machines": machines})
}
