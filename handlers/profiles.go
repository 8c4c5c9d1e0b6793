package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
)

type ProfileRequest struct {
	ProfilePhoto *string `json:"profile_photo" binding:"omitempty,url"`
	About        *string `json:"about" binding:"omitempty,max=1000"`
	Location     *string `json:"location" binding:"omitempty,max=200"`
	Language     *string `json:"language" binding:"omitempty,min=2,max=10"`
	PhoneNumber  *string `json:"phone_number" binding:"omitempty,phone"`
}

func (r ProfileRequest) apply(p *models.UserProfile) {
	if r.ProfilePhoto != nil {
		p.ProfilePhoto = r.ProfilePhoto
	}
	if r.About != nil {
		p.About = r.About
	}
	if r.Location != nil {
		p.Location = *r.Location
	}
	if r.Language != nil {
		p.Language = *r.Language
	}
	if r.PhoneNumber != nil {
		p.PhoneNumber = *r.PhoneNumber
	}
}

func (h *Handler) ListProfiles(c *gin.Context) {
	var profiles []models.UserProfile
	if err := h.db.Order("id").Find(&profiles).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list profiles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(profiles), "profiles": profiles})
}

// CreateProfile creates the caller's profile; a user has at most one
func (h *Handler) CreateProfile(c *gin.Context) {
	var req ProfileRequest
	if !h.bind(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)

	taken, err := exists(h.db, &models.UserProfile{}, "user_id = ?", userID)
	if err != nil {
		h.fail(c, apperr.Internal("failed to create profile", err))
		return
	}
	if taken {
		h.fail(c, apperr.Conflict("Profile already exists"))
		return
	}

	profile := models.UserProfile{UserID: userID, Language: "en"}
	req.apply(&profile)
	if err := h.db.Create(&profile).Error; err != nil {
		h.fail(c, writeErr(err, "create profile", "Profile already exists"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Profile created", "profile": profile})
}

func (h *Handler) GetMyProfile(c *gin.Context) {
	var profile models.UserProfile
	if err := h.db.Where("user_id = ?", middleware.GetUserID(c)).First(&profile).Error; err != nil {
		h.fail(c, lookupErr(err, "Profile"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *Handler) UpdateMyProfile(c *gin.Context) {
	var req ProfileRequest
	if !h.bind(c, &req) {
		return
	}
	var profile models.UserProfile
	if err := h.db.Where("user_id = ?", middleware.GetUserID(c)).First(&profile).Error; err != nil {
		h.fail(c, lookupErr(err, "Profile"))
		return
	}
	req.apply(&profile)
	if err := h.db.Save(&profile).Error; err != nil {
		h.fail(c, apperr.Internal("failed to update profile", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "profile": profile})
}

func (h *Handler) DeleteMyProfile(c *gin.Context) {
	res := h.db.Where("user_id = ?", middleware.GetUserID(c)).Delete(&models.UserProfile{})
	if res.Error != nil {
		h.fail(c, apperr.Internal("failed to delete profile", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		h.fail(c, apperr.NotFound("Profile not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile deleted"})
}
