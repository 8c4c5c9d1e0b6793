package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/auth"
	"arrively-api/middleware"
	"arrively-api/models"
)

type UpdateUserRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,phone"`
	CityID    *uint   `json:"city_id"`
}

type userSummary struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// ListUsers returns the id and email of every account
func (h *Handler) ListUsers(c *gin.Context) {
	var users []userSummary
	if err := h.db.Model(&models.User{}).Select("id", "email").Order("id").Find(&users).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list users", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// GetMe returns the authenticated user's account
func (h *Handler) GetMe(c *gin.Context) {
	var user models.User
	if err := h.db.First(&user, middleware.GetUserID(c)).Error; err != nil {
		h.fail(c, lookupErr(err, "User"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req UpdateUserRequest
	if !h.bind(c, &req) {
		return
	}
	var user models.User
	if err := h.db.First(&user, middleware.GetUserID(c)).Error; err != nil {
		h.fail(c, lookupErr(err, "User"))
		return
	}

	if req.Phone != nil && *req.Phone != user.Phone {
		taken, err := exists(h.db, &models.User{}, "phone = ? AND id <> ?", *req.Phone, user.ID)
		if err != nil {
			h.fail(c, apperr.Internal("failed to update user", err))
			return
		}
		if taken {
			h.fail(c, apperr.Conflict("Phone already registered"))
			return
		}
		user.Phone = *req.Phone
	}
	if req.CityID != nil {
		if err := h.db.First(&models.City{}, *req.CityID).Error; err != nil {
			h.fail(c, lookupErr(err, "City"))
			return
		}
		user.CityID = req.CityID
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}

	if err := h.db.Save(&user).Error; err != nil {
		h.fail(c, writeErr(err, "update user", "Phone already registered"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account updated", "user": user})
}

// DeleteMe removes the caller's account together with everything they own
func (h *Handler) DeleteMe(c *gin.Context) {
	userID := middleware.GetUserID(c)
	res := h.db.Delete(&models.User{}, userID)
	if res.Error != nil {
		h.fail(c, apperr.Internal("failed to delete user", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		h.fail(c, apperr.NotFound("User not found"))
		return
	}
	if _, err := auth.RevokeClaims(c.Request.Context(), h.denylist, middleware.GetClaims(c)); err != nil {
		h.fail(c, apperr.Internal("failed to revoke token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
