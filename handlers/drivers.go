package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
	"arrively-api/statemachine"
)

type CreateDriverRequest struct {
	FirstName     string   `json:"first_name" binding:"required,max=100"`
	LastName      string   `json:"last_name" binding:"required,max=100"`
	Email         string   `json:"email" binding:"required,email_addr"`
	Phone         string   `json:"phone" binding:"required,phone"`
	Photo         string   `json:"photo" binding:"omitempty,url"`
	AboutMe       string   `json:"about_me" binding:"max=1000"`
	FromLocation  string   `json:"from_location" binding:"max=200"`
	Languages     string   `json:"languages" binding:"max=200"`
	IsPilot       bool     `json:"is_pilot"`
	LicenseNumber string   `json:"license_number" binding:"required,max=50"`
	CurrentLat    *float64 `json:"current_lat" binding:"omitempty,min=-90,max=90"`
	CurrentLng    *float64 `json:"current_lng" binding:"omitempty,min=-180,max=180"`
}

type UpdateDriverRequest struct {
	FirstName     *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName      *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email         *string `json:"email" binding:"omitempty,email_addr"`
	Phone         *string `json:"phone" binding:"omitempty,phone"`
	Photo         *string `json:"photo" binding:"omitempty,url"`
	AboutMe       *string `json:"about_me" binding:"omitempty,max=1000"`
	FromLocation  *string `json:"from_location" binding:"omitempty,max=200"`
	Languages     *string `json:"languages" binding:"omitempty,max=200"`
	IsPilot       *bool   `json:"is_pilot"`
	LicenseNumber *string `json:"license_number" binding:"omitempty,min=1,max=50"`
}

type LocationRequest struct {
	Lat *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" binding:"required,min=-180,max=180"`
}

type AvailabilityRequest struct {
	Status models.AvailabilityStatus `json:"status" binding:"required"`
}

// VerificationRequest moves a driver through review. Actor is optional and
// only selects between roles the caller holds (reviewer for staff, driver for
// the linked account).
type VerificationRequest struct {
	Status models.VerificationStatus `json:"status" binding:"required"`
	Actor  string                    `json:"actor"`
}

// ListDrivers supports ?availability= and ?verification_status= filters
func (h *Handler) ListDrivers(c *gin.Context) {
	var drivers []models.Driver
	query := h.db.Order("id")
	if v := c.Query("availability"); v != "" {
		query = query.Where("availability_status = ?", v)
	}
	if v := c.Query("verification_status"); v != "" {
		query = query.Where("verification_status = ?", v)
	}
	if err := query.Find(&drivers).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list drivers", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(drivers), "drivers": drivers})
}

// checkDriverUnique returns a conflict if email or phone belong to another driver.
func (h *Handler) checkDriverUnique(email, phone string, exceptID uint) error {
	if email != "" {
		taken, err := exists(h.db, &models.Driver{}, "email = ? AND id <> ?", email, exceptID)
		if err != nil {
			return apperr.Internal("failed to check driver", err)
		}
		if taken {
			return apperr.Conflict("Driver email already registered")
		}
	}
	if phone != "" {
		taken, err := exists(h.db, &models.Driver{}, "phone = ? AND id <> ?", phone, exceptID)
		if err != nil {
			return apperr.Internal("failed to check driver", err)
		}
		if taken {
			return apperr.Conflict("Driver phone already registered")
		}
	}
	return nil
}

// CreateDriver registers the caller as a driver. An account can be linked to
// at most one driver.
func (h *Handler) CreateDriver(c *gin.Context) {
	var req CreateDriverRequest
	if !h.bind(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)
	linked, err := exists(h.db, &models.Driver{}, "user_id = ?", userID)
	if err != nil {
		h.fail(c, apperr.Internal("failed to check driver", err))
		return
	}
	if linked {
		h.fail(c, apperr.Conflict("Your account is already linked to a driver"))
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.checkDriverUnique(req.Email, req.Phone, 0); err != nil {
		h.fail(c, err)
		return
	}

	driver := models.Driver{
		UserID:             &userID,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		Phone:              req.Phone,
		Photo:              req.Photo,
		AboutMe:            req.AboutMe,
		FromLocation:       req.FromLocation,
		Languages:          req.Languages,
		IsPilot:            req.IsPilot,
		LicenseNumber:      req.LicenseNumber,
		VerificationStatus: models.VerificationPending,
		AvailabilityStatus: models.AvailabilityOffline,
	}
	if req.CurrentLat != nil && req.CurrentLng != nil {
		driver.CurrentLat, driver.CurrentLng = *req.CurrentLat, *req.CurrentLng
	}
	if err := h.db.Create(&driver).Error; err != nil {
		h.fail(c, writeErr(err, "create driver", "Driver already registered"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Driver created", "driver": driver})
}

func (h *Handler) loadDriver(c *gin.Context) (*models.Driver, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	var driver models.Driver
	if err := h.db.First(&driver, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Driver"))
		return nil, false
	}
	return &driver, true
}

// loadManagedDriver loads the driver in :id for its own account or staff.
func (h *Handler) loadManagedDriver(c *gin.Context) (*models.Driver, bool) {
	driver, ok := h.loadDriver(c)
	if !ok {
		return nil, false
	}
	if err := authorizeDriver(c, driver); err != nil {
		h.fail(c, err)
		return nil, false
	}
	return driver, true
}

func (h *Handler) GetDriver(c *gin.Context) {
	driver, ok := h.loadDriver(c)
	if !ok {
		return
	}
	var vehicles []models.Vehicle
	if err := h.db.Where("driver_id = ?", driver.ID).Order("id").Find(&vehicles).Error; err != nil {
		h.fail(c, apperr.Internal("failed to load vehicles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": driver, "vehicles": vehicles})
}

func (h *Handler) UpdateDriver(c *gin.Context) {
	var req UpdateDriverRequest
	if !h.bind(c, &req) {
		return
	}
	driver, ok := h.loadManagedDriver(c)
	if !ok {
		return
	}

	var email, phone string
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		phone = *req.Phone
	}
	if err := h.checkDriverUnique(email, phone, driver.ID); err != nil {
		h.fail(c, err)
		return
	}
	if email != "" {
		driver.Email = email
	}
	if phone != "" {
		driver.Phone = phone
	}
	if req.FirstName != nil {
		driver.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		driver.LastName = *req.LastName
	}
	if req.Photo != nil {
		driver.Photo = *req.Photo
	}
	if req.AboutMe != nil {
		driver.AboutMe = *req.AboutMe
	}
	if req.FromLocation != nil {
		driver.FromLocation = *req.FromLocation
	}
	if req.Languages != nil {
		driver.Languages = *req.Languages
	}
	if req.IsPilot != nil {
		driver.IsPilot = *req.IsPilot
	}
	if req.LicenseNumber != nil {
		driver.LicenseNumber = *req.LicenseNumber
	}

	if err := h.db.Save(driver).Error; err != nil {
		h.fail(c, writeErr(err, "update driver", "Driver email or phone already registered"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Driver updated", "driver": driver})
}

// DeleteDriver removes a driver and, through the foreign key, their vehicles
func (h *Handler) DeleteDriver(c *gin.Context) {
	driver, ok := h.loadManagedDriver(c)
	if !ok {
		return
	}
	if driver.AvailabilityStatus == models.AvailabilityOnTrip {
		h.fail(c, apperr.Conflict("Driver is on a trip"))
		return
	}
	if err := h.db.Delete(driver).Error; err != nil {
		h.fail(c, apperr.Internal("failed to delete driver", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Driver deleted"})
}

func (h *Handler) UpdateDriverLocation(c *gin.Context) {
	var req LocationRequest
	if !h.bind(c, &req) {
		return
	}
	driver, ok := h.loadManagedDriver(c)
	if !ok {
		return
	}
	err := h.db.Model(driver).Updates(map[string]any{
		"current_lat": *req.Lat,
		"current_lng": *req.Lng,
	}).Error
	if err != nil {
		h.fail(c, apperr.Internal("failed to update location", err))
		return
	}
	driver.CurrentLat, driver.CurrentLng = *req.Lat, *req.Lng
	c.JSON(http.StatusOK, gin.H{"message": "Location updated", "driver": driver})
}

func (h *Handler) UpdateDriverAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.Status.Valid() {
		h.fail(c, apperr.Validation("status must be one of: offline, available, on_trip"))
		return
	}
	driver, ok := h.loadManagedDriver(c)
	if !ok {
		return
	}
	if err := h.db.Model(driver).Update("availability_status", req.Status).Error; err != nil {
		h.fail(c, apperr.Internal("failed to update availability", err))
		return
	}
	driver.AvailabilityStatus = req.Status
	c.JSON(http.StatusOK, gin.H{"message": "Availability updated", "driver": driver})
}

// UpdateDriverVerification moves a driver through document review. Staff
// review as reviewer; the driver's own account may resubmit as driver.
func (h *Handler) UpdateDriverVerification(c *gin.Context) {
	var req VerificationRequest
	if !h.bind(c, &req) {
		return
	}
	if !statemachine.Verification.Valid(string(req.Status)) {
		h.fail(c, apperr.Validation("status must be one of: "+strings.Join(statemachine.Verification.States(), ", ")))
		return
	}
	driver, ok := h.loadDriver(c)
	if !ok {
		return
	}
	var held []string
	if isStaff(c) {
		held = append(held, statemachine.ActorReviewer)
	}
	if drivesAs(c, driver) {
		held = append(held, statemachine.ActorDriver)
	}
	actor, err := resolveActor(statemachine.Verification, held, req.Actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := statemachine.CanVerificationTransition(driver.VerificationStatus, req.Status, actor); err != nil {
		h.fail(c, apperr.InvalidTransition(err.Error(), err))
		return
	}

	res := h.db.Model(&models.Driver{}).
		Where("id = ? AND verification_status = ?", driver.ID, driver.VerificationStatus).
		Update("verification_status", req.Status)
	if res.Error != nil {
		h.fail(c, apperr.Internal("failed to update verification", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		h.fail(c, apperr.Conflict("Driver verification changed concurrently, retry"))
		return
	}
	driver.VerificationStatus = req.Status
	c.JSON(http.StatusOK, gin.H{"message": "Verification updated", "driver": driver})
}
