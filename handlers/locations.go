package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

type RecentLocationRequest struct {
	LocationName string   `json:"location_name" binding:"required,max=100"`
	Address      string   `json:"address" binding:"required,max=255"`
	Lat          *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng          *float64 `json:"lng" binding:"required,min=-180,max=180"`
}

// ListRecentLocations returns the caller's places, most recently used first
func (h *Handler) ListRecentLocations(c *gin.Context) {
	limit := defaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.fail(c, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRecentLimit)
	}
	var locations []models.RecentLocation
	err := h.db.Where("user_id = ?", middleware.GetUserID(c)).
		Order("last_used desc, id desc").Limit(limit).Find(&locations).Error
	if err != nil {
		h.fail(c, apperr.Internal("failed to list recent locations", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(locations), "recent_locations": locations})
}

// SaveRecentLocation records a visit. An address the user already has bumps
// its frequency and last-used time instead of creating a duplicate.
func (h *Handler) SaveRecentLocation(c *gin.Context) {
	var req RecentLocationRequest
	if !h.bind(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)
	now := h.now()

	var loc models.RecentLocation
	created := false
	err := h.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND address = ?", userID, req.Address).First(&loc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			loc = models.RecentLocation{
				UserID:       userID,
				LocationName: req.LocationName,
				Address:      req.Address,
				Lat:          *req.Lat,
				Lng:          *req.Lng,
				Frequency:    1,
				LastUsed:     now,
			}
			created = true
			return tx.Create(&loc).Error
		}
		if err != nil {
			return err
		}
		loc.LocationName = req.LocationName
		loc.Lat, loc.Lng = *req.Lat, *req.Lng
		loc.Frequency++
		loc.LastUsed = now
		return tx.Save(&loc).Error
	})
	if err != nil {
		h.fail(c, apperr.Internal("failed to save recent location", err))
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"message": "Location saved", "recent_location": loc})
}
