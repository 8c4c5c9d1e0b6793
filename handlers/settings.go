package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
)

type SettingsRequest struct {
	Language             *string `json:"language" binding:"omitempty,min=2,max=10"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	DarkMode             *bool   `json:"dark_mode"`
	Currency             *string `json:"currency" binding:"omitempty,len=3,alpha"`
}

func (r SettingsRequest) apply(s *models.Settings) {
	if r.Language != nil {
		s.Language = *r.Language
	}
	if r.NotificationsEnabled != nil {
		s.NotificationsEnabled = *r.NotificationsEnabled
	}
	if r.DarkMode != nil {
		s.DarkMode = *r.DarkMode
	}
	if r.Currency != nil {
		s.Currency = strings.ToUpper(*r.Currency)
	}
}

func (h *Handler) GetSettings(c *gin.Context) {
	var settings models.Settings
	if err := h.db.Where("user_id = ?", middleware.GetUserID(c)).First(&settings).Error; err != nil {
		h.fail(c, lookupErr(err, "Settings"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// CreateSettings stores the caller's preferences; one row per user
func (h *Handler) CreateSettings(c *gin.Context) {
	var req SettingsRequest
	if !h.bind(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)

	taken, err := exists(h.db, &models.Settings{}, "user_id = ?", userID)
	if err != nil {
		h.fail(c, apperr.Internal("failed to create settings", err))
		return
	}
	if taken {
		h.fail(c, apperr.Conflict("Settings already exist"))
		return
	}

	settings := models.Settings{
		UserID:               userID,
		Language:             "en",
		NotificationsEnabled: true,
		Currency:             "USD",
	}
	req.apply(&settings)
	if err := h.db.Create(&settings).Error; err != nil {
		h.fail(c, apperr.Internal("failed to create settings", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Settings saved", "settings": settings})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if !h.bind(c, &req) {
		return
	}
	var settings models.Settings
	if err := h.db.Where("user_id = ?", middleware.GetUserID(c)).First(&settings).Error; err != nil {
		h.fail(c, lookupErr(err, "Settings"))
		return
	}
	req.apply(&settings)
	if err := h.db.Save(&settings).Error; err != nil {
		h.fail(c, apperr.Internal("failed to update settings", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated", "settings": settings})
}

func (h *Handler) DeleteSettings(c *gin.Context) {
	res := h.db.Where("user_id = ?", middleware.GetUserID(c)).Delete(&models.Settings{})
	if res.Error != nil {
		h.fail(c, apperr.Internal("failed to delete settings", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		h.fail(c, apperr.NotFound("Settings not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings deleted"})
}
