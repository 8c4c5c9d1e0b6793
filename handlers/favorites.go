package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
)

type FavoriteRequest struct {
	DriverID  uint  `json:"driver_id" binding:"required"`
	VehicleID *uint `json:"vehicle_id"`
}

func (h *Handler) ListFavorites(c *gin.Context) {
	var favorites []models.Favorite
	if err := h.db.Where("user_id = ?", middleware.GetUserID(c)).Order("id").Find(&favorites).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list favorites", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(favorites), "favorites": favorites})
}

// CreateFavorite marks a driver as a favourite of the caller
func (h *Handler) CreateFavorite(c *gin.Context) {
	var req FavoriteRequest
	if !h.bind(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)

	if err := h.db.First(&models.Driver{}, req.DriverID).Error; err != nil {
		h.fail(c, lookupErr(err, "Driver"))
		return
	}
	if req.VehicleID != nil {
		var vehicle models.Vehicle
		if err := h.db.First(&vehicle, *req.VehicleID).Error; err != nil {
			h.fail(c, lookupErr(err, "Vehicle"))
			return
		}
		if vehicle.DriverID != req.DriverID {
			h.fail(c, apperr.Validation("Vehicle does not belong to this driver"))
			return
		}
	}
	taken, err := exists(h.db, &models.Favorite{}, "user_id = ? AND driver_id = ?", userID, req.DriverID)
	if err != nil {
		h.fail(c, apperr.Internal("failed to create favorite", err))
		return
	}
	if taken {
		h.fail(c, apperr.Conflict("Driver is already a favorite"))
		return
	}

	favorite := models.Favorite{UserID: userID, DriverID: req.DriverID, VehicleID: req.VehicleID}
	if err := h.db.Create(&favorite).Error; err != nil {
		h.fail(c, apperr.Internal("failed to create favorite", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Favorite added", "favorite": favorite})
}

func (h *Handler) DeleteFavorite(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var favorite models.Favorite
	if err := h.db.First(&favorite, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Favorite"))
		return
	}
	if favorite.UserID != middleware.GetUserID(c) {
		h.fail(c, apperr.Forbidden("This favorite does not belong to you"))
		return
	}
	if err := h.db.Delete(&favorite).Error; err != nil {
		h.fail(c, apperr.Internal("failed to delete favorite", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Favorite removed"})
}
