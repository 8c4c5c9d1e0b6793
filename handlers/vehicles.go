package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"arrively-api/apperr"
	"arrively-api/models"
)

type CreateVehicleRequest struct {
	DriverID          uint                 `json:"driver_id" binding:"required"`
	VehicleType       string               `json:"vehicle_type" binding:"required,max=50"`
	Style             string               `json:"style" binding:"max=50"`
	Make              string               `json:"make" binding:"required,max=50"`
	Model             string               `json:"model" binding:"required,max=50"`
	Year              int                  `json:"year" binding:"required,min=1950,max=2100"`
	LicensePlate      string               `json:"license_plate" binding:"required,max=20"`
	PassengerCapacity int                  `json:"passenger_capacity" binding:"required,min=1,max=60"`
	Photo             string               `json:"photo" binding:"omitempty,url"`
	BaseFare          *decimal.Decimal     `json:"base_fare" binding:"required"`
	PerMinuteRate     *decimal.Decimal     `json:"per_minute_rate" binding:"required"`
	PerKilometerRate  *decimal.Decimal     `json:"per_kilometer_rate" binding:"required"`
	Status            models.VehicleStatus `json:"status"`
}

type UpdateVehicleRequest struct {
	VehicleType       *string               `json:"vehicle_type" binding:"omitempty,min=1,max=50"`
	Style             *string               `json:"style" binding:"omitempty,max=50"`
	Make              *string               `json:"make" binding:"omitempty,min=1,max=50"`
	Model             *string               `json:"model" binding:"omitempty,min=1,max=50"`
	Year              *int                  `json:"year" binding:"omitempty,min=1950,max=2100"`
	LicensePlate      *string               `json:"license_plate" binding:"omitempty,min=1,max=20"`
	PassengerCapacity *int                  `json:"passenger_capacity" binding:"omitempty,min=1,max=60"`
	Photo             *string               `json:"photo" binding:"omitempty,url"`
	BaseFare          *decimal.Decimal      `json:"base_fare"`
	PerMinuteRate     *decimal.Decimal      `json:"per_minute_rate"`
	PerKilometerRate  *decimal.Decimal      `json:"per_kilometer_rate"`
	Status            *models.VehicleStatus `json:"status"`
}

func checkRates(rates ...*decimal.Decimal) error {
	for _, r := range rates {
		if r != nil && r.IsNegative() {
			return apperr.Validation("fares and rates must not be negative")
		}
	}
	return nil
}

// checkSingleActive enforces one active vehicle per driver.
func checkSingleActive(tx *gorm.DB, driverID, exceptID uint) error {
	taken, err := exists(tx, &models.Vehicle{}, "driver_id = ? AND status = ? AND id <> ?",
		driverID, models.VehicleActive, exceptID)
	if err != nil {
		return apperr.Internal("failed to check vehicles", err)
	}
	if taken {
		return apperr.Conflict("Driver already has an active vehicle")
	}
	return nil
}

// ListVehicles supports ?driver_id= and ?status= filters
func (h *Handler) ListVehicles(c *gin.Context) {
	var vehicles []models.Vehicle
	query := h.db.Order("id")
	if v := c.Query("driver_id"); v != "" {
		query = query.Where("driver_id = ?", v)
	}
	if v := c.Query("status"); v != "" {
		query = query.Where("status = ?", v)
	}
	if err := query.Find(&vehicles).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list vehicles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(vehicles), "vehicles": vehicles})
}

func (h *Handler) CreateVehicle(c *gin.Context) {
	var req CreateVehicleRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Status == "" {
		req.Status = models.VehicleActive
	}
	if !req.Status.Valid() {
		h.fail(c, apperr.Validation("status must be one of: active, inactive"))
		return
	}
	if err := checkRates(req.BaseFare, req.PerMinuteRate, req.PerKilometerRate); err != nil {
		h.fail(c, err)
		return
	}

	var driver models.Driver
	if err := h.db.First(&driver, req.DriverID).Error; err != nil {
		h.fail(c, lookupErr(err, "Driver"))
		return
	}
	if err := authorizeDriver(c, &driver); err != nil {
		h.fail(c, err)
		return
	}
	if req.Status == models.VehicleActive {
		if err := checkSingleActive(h.db, req.DriverID, 0); err != nil {
			h.fail(c, err)
			return
		}
	}

	vehicle := models.Vehicle{
		DriverID:          req.DriverID,
		VehicleType:       req.VehicleType,
		Style:             req.Style,
		Make:              req.Make,
		Model:             req.Model,
		Year:              req.Year,
		LicensePlate:      req.LicensePlate,
		PassengerCapacity: req.PassengerCapacity,
		Photo:             req.Photo,
		BaseFare:          req.BaseFare.Round(2),
		PerMinuteRate:     req.PerMinuteRate.Round(2),
		PerKilometerRate:  req.PerKilometerRate.Round(2),
		Status:            req.Status,
	}
	if err := h.db.Create(&vehicle).Error; err != nil {
		h.fail(c, writeErr(err, "create vehicle", "Vehicle already exists"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Vehicle created", "vehicle": vehicle})
}

func (h *Handler) loadVehicle(c *gin.Context) (*models.Vehicle, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	var vehicle models.Vehicle
	if err := h.db.First(&vehicle, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Vehicle"))
		return nil, false
	}
	return &vehicle, true
}

// loadManagedVehicle loads the vehicle in :id for its driver's account or staff.
func (h *Handler) loadManagedVehicle(c *gin.Context) (*models.Vehicle, bool) {
	vehicle, ok := h.loadVehicle(c)
	if !ok {
		return nil, false
	}
	var driver models.Driver
	if err := h.db.Select("id", "user_id").First(&driver, vehicle.DriverID).Error; err != nil {
		h.fail(c, lookupErr(err, "Driver"))
		return nil, false
	}
	if err := authorizeDriver(c, &driver); err != nil {
		h.fail(c, err)
		return nil, false
	}
	return vehicle, true
}

func (h *Handler) GetVehicle(c *gin.Context) {
	vehicle, ok := h.loadVehicle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": vehicle})
}

func (h *Handler) UpdateVehicle(c *gin.Context) {
	var req UpdateVehicleRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		h.fail(c, apperr.Validation("status must be one of: active, inactive"))
		return
	}
	if err := checkRates(req.BaseFare, req.PerMinuteRate, req.PerKilometerRate); err != nil {
		h.fail(c, err)
		return
	}
	vehicle, ok := h.loadManagedVehicle(c)
	if !ok {
		return
	}
	if req.Status != nil && *req.Status == models.VehicleActive && vehicle.Status != models.VehicleActive {
		if err := checkSingleActive(h.db, vehicle.DriverID, vehicle.ID); err != nil {
			h.fail(c, err)
			return
		}
	}

	if req.VehicleType != nil {
		vehicle.VehicleType = *req.VehicleType
	}
	if req.Style != nil {
		vehicle.Style = *req.Style
	}
	if req.Make != nil {
		vehicle.Make = *req.Make
	}
	if req.Model != nil {
		vehicle.Model = *req.Model
	}
	if req.Year != nil {
		vehicle.Year = *req.Year
	}
	if req.LicensePlate != nil {
		vehicle.LicensePlate = *req.LicensePlate
	}
	if req.PassengerCapacity != nil {
		vehicle.PassengerCapacity = *req.PassengerCapacity
	}
	if req.Photo != nil {
		vehicle.Photo = *req.Photo
	}
	if req.BaseFare != nil {
		vehicle.BaseFare = req.BaseFare.Round(2)
	}
	if req.PerMinuteRate != nil {
		vehicle.PerMinuteRate = req.PerMinuteRate.Round(2)
	}
	if req.PerKilometerRate != nil {
		vehicle.PerKilometerRate = req.PerKilometerRate.Round(2)
	}
	if req.Status != nil {
		vehicle.Status = *req.Status
	}

	if err := h.db.Save(vehicle).Error; err != nil {
		h.fail(c, apperr.Internal("failed to update vehicle", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vehicle updated", "vehicle": vehicle})
}

func (h *Handler) DeleteVehicle(c *gin.Context) {
	vehicle, ok := h.loadManagedVehicle(c)
	if !ok {
		return
	}
	if err := h.db.Delete(vehicle).Error; err != nil {
		h.fail(c, apperr.Internal("failed to delete vehicle", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vehicle deleted"})
}
