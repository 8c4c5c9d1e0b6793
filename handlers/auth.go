package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"arrively-api/apperr"
	"arrively-api/auth"
	"arrively-api/middleware"
	"arrively-api/models"
)

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email_addr"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Phone     string `json:"phone" binding:"required,phone"`
	CityID    *uint  `json:"city_id"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user,omitempty"`
	auth.TokenPair
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates a new user account and signs them in
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !h.bind(c, &req) {
		return
	}
	req.Email = normalizeEmail(req.Email)

	// Check email and phone uniqueness
	taken, err := exists(h.db, &models.User{}, "email = ?", req.Email)
	if err != nil {
		h.fail(c, apperr.Internal("failed to create user", err))
		return
	}
	if taken {
		h.fail(c, apperr.Conflict("Email already registered"))
		return
	}
	taken, err = exists(h.db, &models.User{}, "phone = ?", req.Phone)
	if err != nil {
		h.fail(c, apperr.Internal("failed to create user", err))
		return
	}
	if taken {
		h.fail(c, apperr.Conflict("Phone already registered"))
		return
	}
	if req.CityID != nil {
		if err := h.db.First(&models.City{}, *req.CityID).Error; err != nil {
			h.fail(c, lookupErr(err, "City"))
			return
		}
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.fail(c, apperr.Internal("failed to hash password", err))
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         models.RoleUser,
		CityID:       req.CityID,
	}
	if err := h.db.Create(&user).Error; err != nil {
		h.fail(c, writeErr(err, "create user", "Email already registered"))
		return
	}

	pair, err := h.tokens.IssuePair(auth.IdentityOf(&user))
	if err != nil {
		h.fail(c, apperr.Internal("failed to generate token", err))
		return
	}
	h.metrics.AuthEvent("register")

	c.JSON(http.StatusCreated, AuthResponse{
		Message:   "Account created successfully",
		User:      &user,
		TokenPair: pair,
	})
}

// Login authenticates a user and returns a token pair
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}

	var user models.User
	err := h.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.fail(c, apperr.Internal("failed to load user", err))
		return
	}
	var matched bool
	if err != nil {
		matched = h.hasher.Reject(req.Password)
	} else {
		matched = h.hasher.Verify(req.Password, user.PasswordHash)
	}
	if !matched {
		h.metrics.AuthEvent("login_failure")
		h.fail(c, apperr.Unauthorized("Invalid email or password", nil))
		return
	}

	pair, err := h.tokens.IssuePair(auth.IdentityOf(&user))
	if err != nil {
		h.fail(c, apperr.Internal("failed to generate token", err))
		return
	}
	h.metrics.AuthEvent("login_success")

	c.JSON(http.StatusOK, AuthResponse{
		Message:   "Login successful",
		User:      &user,
		TokenPair: pair,
	})
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is consumed through the denylist, so of any number of concurrent
// refreshes with one token exactly one succeeds. Tokens issued before the
// last password or role change are refused.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	claims, err := h.tokens.ValidateRefresh(req.RefreshToken)
	if err != nil {
		h.metrics.AuthEvent("refresh_failure")
		h.fail(c, apperr.Unauthorized("Invalid or expired refresh token", err))
		return
	}
	revoked, err := h.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		h.fail(c, apperr.Internal("failed to check token", err))
		return
	}
	if revoked {
		h.metrics.AuthEvent("refresh_failure")
		h.fail(c, apperr.Unauthorized("Refresh token has been revoked", nil))
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		h.fail(c, apperr.Unauthorized("Invalid or expired refresh token", err))
		return
	}
	current, err := h.ids.Current(ctx, userID)
	if errors.Is(err, auth.ErrUnknownAccount) {
		h.fail(c, apperr.Unauthorized("Account no longer exists", err))
		return
	}
	if err != nil {
		h.fail(c, apperr.Internal("failed to load user", err))
		return
	}
	if !claims.Current(current) {
		h.metrics.AuthEvent("refresh_failure")
		h.fail(c, apperr.Unauthorized("Session has ended, please sign in again", nil))
		return
	}

	consumed, err := auth.RevokeClaims(ctx, h.denylist, claims)
	if err != nil {
		h.fail(c, apperr.Internal("failed to rotate token", err))
		return
	}
	if !consumed {
		h.metrics.AuthEvent("refresh_failure")
		h.fail(c, apperr.Unauthorized("Refresh token has been revoked", nil))
		return
	}
	pair, err := h.tokens.IssuePair(current)
	if err != nil {
		h.fail(c, apperr.Internal("failed to generate token", err))
		return
	}
	h.metrics.AuthEvent("refresh")

	c.JSON(http.StatusOK, AuthResponse{Message: "Token refreshed", TokenPair: pair})
}

// Logout revokes the caller's access token and, when supplied, their
// refresh token.
func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	var refreshClaims *auth.Claims
	if req.RefreshToken != "" {
		claims, err := h.tokens.ValidateRefresh(req.RefreshToken)
		if err != nil {
			h.fail(c, apperr.Unauthorized("Invalid or expired refresh token", err))
			return
		}
		if claims.Subject != auth.Subject(userID) {
			h.fail(c, apperr.Forbidden("Refresh token belongs to another account"))
			return
		}
		refreshClaims = claims
	}

	if _, err := auth.RevokeClaims(ctx, h.denylist, middleware.GetClaims(c)); err != nil {
		h.fail(c, apperr.Internal("failed to revoke token", err))
		return
	}
	if _, err := auth.RevokeClaims(ctx, h.denylist, refreshClaims); err != nil {
		h.fail(c, apperr.Internal("failed to revoke token", err))
		return
	}
	h.metrics.AuthEvent("logout")

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ChangePassword replaces the caller's password after checking the current
// one. The account's token version is bumped, which ends every session
// issued before the change, refresh tokens included.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !h.bind(c, &req) {
		return
	}

	var user models.User
	if err := h.db.First(&user, middleware.GetUserID(c)).Error; err != nil {
		h.fail(c, lookupErr(err, "User"))
		return
	}
	if !h.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		h.fail(c, apperr.Unauthorized("Current password is incorrect", nil))
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		h.fail(c, apperr.Internal("failed to hash password", err))
		return
	}
	err = h.db.Model(&user).Updates(map[string]any{
		"password_hash": hash,
		"token_version": gorm.Expr("token_version + 1"),
	}).Error
	if err != nil {
		h.fail(c, apperr.Internal("failed to update password", err))
		return
	}
	if _, err := auth.RevokeClaims(c.Request.Context(), h.denylist, middleware.GetClaims(c)); err != nil {
		h.fail(c, apperr.Internal("failed to revoke token", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated, please sign in again"})
}
