package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"arrively-api/apperr"
	"arrively-api/fare"
	"arrively-api/middleware"
	"arrively-api/models"
	"arrively-api/statemachine"
)

type CreateRideRequest struct {
	DriverID        uint       `json:"driver_id" binding:"required"`
	VehicleID       uint       `json:"vehicle_id" binding:"required"`
	RideType        string     `json:"ride_type" binding:"required,max=50"`
	PickupLocation  string     `json:"pickup_location" binding:"required,max=255"`
	PickupLat       *float64   `json:"pickup_lat" binding:"required,min=-90,max=90"`
	PickupLng       *float64   `json:"pickup_lng" binding:"required,min=-180,max=180"`
	DropoffLocation string     `json:"dropoff_location" binding:"required,max=255"`
	DropoffLat      *float64   `json:"dropoff_lat" binding:"required,min=-90,max=90"`
	DropoffLng      *float64   `json:"dropoff_lng" binding:"required,min=-180,max=180"`
	ScheduledTime   *time.Time `json:"scheduled_time"`
}

// RideStatusRequest moves a ride. Actor is optional and only selects between
// roles the caller actually holds on the ride.
type RideStatusRequest struct {
	Status       models.RideStatus `json:"status" binding:"required"`
	Actor        string            `json:"actor"`
	Note         string            `json:"note" binding:"max=500"`
	CancelReason string            `json:"cancel_reason" binding:"max=500"`
}

type RateRideRequest struct {
	Rating int              `json:"rating" binding:"required,min=1,max=5"`
	Review *string          `json:"review" binding:"omitempty,max=1000"`
	Tip    *decimal.Decimal `json:"tip"`
}

type PayRideRequest struct {
	PaymentID uint `json:"payment_id" binding:"required"`
}

// CreateRide books a ride for the caller and prices it from the vehicle's tariff
func (h *Handler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if !h.bind(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)
	now := h.now()
	if req.ScheduledTime != nil && req.ScheduledTime.Before(now) {
		h.fail(c, apperr.Validation("scheduled_time must be in the future"))
		return
	}

	var driver models.Driver
	if err := h.db.First(&driver, req.DriverID).Error; err != nil {
		h.fail(c, lookupErr(err, "Driver"))
		return
	}
	var vehicle models.Vehicle
	if err := h.db.First(&vehicle, req.VehicleID).Error; err != nil {
		h.fail(c, lookupErr(err, "Vehicle"))
		return
	}
	if vehicle.DriverID != driver.ID {
		h.fail(c, apperr.Validation("Vehicle does not belong to this driver"))
		return
	}
	if vehicle.Status != models.VehicleActive {
		h.fail(c, apperr.Conflict("Vehicle is not active"))
		return
	}
	if driver.UserID != nil && *driver.UserID == userID {
		h.fail(c, apperr.Validation("You cannot book a ride with yourself as the driver"))
		return
	}

	estimate := fare.Estimate(tariffOf(vehicle), *req.PickupLat, *req.PickupLng, *req.DropoffLat, *req.DropoffLng)
	ride := models.Ride{
		UserID:          userID,
		DriverID:        driver.ID,
		VehicleID:       vehicle.ID,
		RideType:        req.RideType,
		VehicleType:     vehicle.VehicleType,
		PickupLocation:  req.PickupLocation,
		PickupLat:       *req.PickupLat,
		PickupLng:       *req.PickupLng,
		DropoffLocation: req.DropoffLocation,
		DropoffLat:      *req.DropoffLat,
		DropoffLng:      *req.DropoffLng,
		ScheduledTime:   req.ScheduledTime,
		Status:          models.RideRequested,
		DistanceKm:      estimate.DistanceKm,
		BaseFare:        estimate.BaseFare,
		DistanceFare:    estimate.DistanceFare,
		TimeFare:        estimate.TimeFare,
		TipAmount:       decimal.Zero,
		TotalAmount:     estimate.Total,
		PaymentStatus:   models.PaymentPending,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ride).Error; err != nil {
			return err
		}
		return tx.Create(&models.RideStatusHistory{
			RideID:    ride.ID,
			ToStatus:  models.RideRequested,
			Actor:     statemachine.ActorRider,
			ChangedBy: userID,
			Note:      "Ride requested",
		}).Error
	})
	if err != nil {
		h.fail(c, apperr.Internal("failed to create ride", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":           "Ride requested",
		"ride":              ride,
		"fare":              estimate,
		"estimated_minutes": estimate.Minutes,
	})
}

func tariffOf(v models.Vehicle) fare.Tariff {
	return fare.Tariff{
		BaseFare:         v.BaseFare,
		PerKilometerRate: v.PerKilometerRate,
		PerMinuteRate:    v.PerMinuteRate,
	}
}

// bookedFare is the price stored on ride, as agreed at booking.
func bookedFare(ride *models.Ride) fare.Breakdown {
	return fare.Breakdown{
		DistanceKm:   ride.DistanceKm,
		BaseFare:     ride.BaseFare,
		DistanceFare: ride.DistanceFare,
		TimeFare:     ride.TimeFare,
		Tip:          ride.TipAmount,
		Total:        ride.TotalAmount,
	}
}

// ListRides returns the caller's rides, newest first; ?status= filters
func (h *Handler) ListRides(c *gin.Context) {
	var rides []models.Ride
	query := h.db.Where("user_id = ?", middleware.GetUserID(c)).Order("created_at desc, id desc")
	if v := c.Query("status"); v != "" {
		query = query.Where("status = ?", v)
	}
	if err := query.Find(&rides).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list rides", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rides), "rides": rides})
}

// loadOwnRide loads the ride in :id and checks it belongs to the caller.
func (h *Handler) loadOwnRide(c *gin.Context) (*models.Ride, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	var ride models.Ride
	if err := h.db.First(&ride, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Ride"))
		return nil, false
	}
	if ride.UserID != middleware.GetUserID(c) {
		h.fail(c, apperr.Forbidden("This ride does not belong to you"))
		return nil, false
	}
	return &ride, true
}

// loadRideForParticipant loads the ride in :id for its rider or its driver
// and returns the actors the caller holds on it, rider first.
func (h *Handler) loadRideForParticipant(c *gin.Context) (*models.Ride, []string, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, nil, false
	}
	var ride models.Ride
	if err := h.db.First(&ride, id).Error; err != nil {
		h.fail(c, lookupErr(err, "Ride"))
		return nil, nil, false
	}
	var held []string
	if ride.UserID == middleware.GetUserID(c) {
		held = append(held, statemachine.ActorRider)
	}
	var driver models.Driver
	err := h.db.Select("id", "user_id").First(&driver, ride.DriverID).Error
	switch {
	case err == nil:
		if drivesAs(c, &driver) {
			held = append(held, statemachine.ActorDriver)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		h.fail(c, apperr.Internal("failed to load driver", err))
		return nil, nil, false
	}
	if len(held) == 0 {
		h.fail(c, apperr.Forbidden("This ride does not belong to you"))
		return nil, nil, false
	}
	return &ride, held, true
}

// GetRide returns a ride with its status history to its rider or driver
func (h *Handler) GetRide(c *gin.Context) {
	ride, _, ok := h.loadRideForParticipant(c)
	if !ok {
		return
	}
	var history []models.RideStatusHistory
	if err := h.db.Where("ride_id = ?", ride.ID).Order("id").Find(&history).Error; err != nil {
		h.fail(c, apperr.Internal("failed to load ride history", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ride":              ride,
		"status_history":    history,
		"valid_next_states": statemachine.Ride.ValidTransitionsFrom(string(ride.Status)),
	})
}

func (h *Handler) DeleteRide(c *gin.Context) {
	ride, ok := h.loadOwnRide(c)
	if !ok {
		return
	}
	if ride.Status == models.RideInProgress {
		h.fail(c, apperr.Conflict("A ride in progress cannot be deleted"))
		return
	}
	if err := h.db.Delete(ride).Error; err != nil {
		h.fail(c, apperr.Internal("failed to delete ride", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ride deleted"})
}

var errStaleRide = errors.New("ride status changed concurrently")

// UpdateRideStatus drives the ride state machine and records a history row
// for every accepted transition. The actor comes from the caller's identity:
// the rider who booked the ride or the account linked to its driver.
func (h *Handler) UpdateRideStatus(c *gin.Context) {
	var req RideStatusRequest
	if !h.bind(c, &req) {
		return
	}
	if !statemachine.Ride.Valid(string(req.Status)) {
		h.fail(c, apperr.Validation("status must be one of: "+strings.Join(statemachine.Ride.States(), ", ")))
		return
	}
	ride, held, ok := h.loadRideForParticipant(c)
	if !ok {
		return
	}
	actor, err := resolveActor(statemachine.Ride, held, req.Actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	from := ride.Status
	if err := statemachine.CanRideTransition(from, req.Status, actor); err != nil {
		h.fail(c, apperr.InvalidTransition(err.Error(), err))
		return
	}

	now := h.now()
	updates := map[string]any{"status": req.Status}
	driverUpdates := map[string]any{}
	switch req.Status {
	case models.RideInProgress:
		updates["start_time"] = now
		ride.StartTime = &now
		driverUpdates["availability_status"] = models.AvailabilityOnTrip
	case models.RideCompleted:
		updates["end_time"] = now
		ride.EndTime = &now
		if ride.StartTime != nil {
			var vehicle models.Vehicle
			err := h.db.First(&vehicle, ride.VehicleID).Error
			switch {
			case err == nil:
				b := fare.Settle(bookedFare(ride), tariffOf(vehicle), fare.ActualMinutes(*ride.StartTime, now))
				ride.TimeFare, ride.TotalAmount = b.TimeFare, b.Total
				updates["time_fare"] = b.TimeFare
				updates["total_amount"] = b.Total
			case !errors.Is(err, gorm.ErrRecordNotFound):
				h.fail(c, apperr.Internal("failed to load vehicle", err))
				return
			}
		}
		driverUpdates["availability_status"] = models.AvailabilityAvailable
		driverUpdates["total_rides"] = gorm.Expr("total_rides + 1")
	case models.RideCancelled:
		if req.CancelReason != "" {
			reason := req.CancelReason
			updates["cancel_reason"] = reason
			ride.CancelReason = &reason
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Ride{}).Where("id = ? AND status = ?", ride.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStaleRide
		}
		if len(driverUpdates) > 0 {
			if err := tx.Model(&models.Driver{}).Where("id = ?", ride.DriverID).Updates(driverUpdates).Error; err != nil {
				return err
			}
		}
		return tx.Create(&models.RideStatusHistory{
			RideID:     ride.ID,
			FromStatus: from,
			ToStatus:   req.Status,
			Actor:      actor,
			ChangedBy:  middleware.GetUserID(c),
			Note:       req.Note,
		}).Error
	})
	if errors.Is(err, errStaleRide) {
		h.fail(c, apperr.Conflict("Ride status changed concurrently, retry"))
		return
	}
	if err != nil {
		h.fail(c, apperr.Internal("failed to update ride status", err))
		return
	}
	ride.Status = req.Status
	h.metrics.RideTransition(string(from), string(req.Status))

	c.JSON(http.StatusOK, gin.H{
		"message":           "Ride status updated",
		"ride":              ride,
		"from":              from,
		"to":                req.Status,
		"actor":             actor,
		"valid_next_states": statemachine.Ride.ValidTransitionsFrom(string(req.Status)),
	})
}

// RateRide stores the rider's rating, review and tip on a completed ride and
// refreshes the driver's average rating
func (h *Handler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Tip != nil && req.Tip.IsNegative() {
		h.fail(c, apperr.Validation("tip must not be negative"))
		return
	}
	ride, ok := h.loadOwnRide(c)
	if !ok {
		return
	}
	if ride.Status != models.RideCompleted {
		h.fail(c, apperr.InvalidTransition("Only completed rides can be rated", nil))
		return
	}
	if ride.Rating != nil {
		h.fail(c, apperr.Conflict("Ride already rated"))
		return
	}

	tip := ride.TipAmount
	if req.Tip != nil {
		tip = req.Tip.Round(2)
	}
	total := ride.BaseFare.Add(ride.DistanceFare).Add(ride.TimeFare).Add(tip)
	rating := req.Rating

	err := h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Ride{}).Where("id = ? AND rating IS NULL", ride.ID).Updates(map[string]any{
			"rating":       rating,
			"review":       req.Review,
			"tip_amount":   tip,
			"total_amount": total,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStaleRide
		}
		var avg float64
		err := tx.Model(&models.Ride{}).
			Where("driver_id = ? AND rating IS NOT NULL", ride.DriverID).
			Select("COALESCE(AVG(rating), 0)").Scan(&avg).Error
		if err != nil {
			return err
		}
		avg = decimal.NewFromFloat(avg).Round(2).InexactFloat64()
		return tx.Model(&models.Driver{}).Where("id = ?", ride.DriverID).Update("rating", avg).Error
	})
	if errors.Is(err, errStaleRide) {
		h.fail(c, apperr.Conflict("Ride already rated"))
		return
	}
	if err != nil {
		h.fail(c, apperr.Internal("failed to rate ride", err))
		return
	}

	ride.Rating = &rating
	ride.Review = req.Review
	ride.TipAmount = tip
	ride.TotalAmount = total
	c.JSON(http.StatusOK, gin.H{"message": "Thanks for rating your ride", "ride": ride})
}

// PayRide settles a completed ride with one of the caller's payment methods
func (h *Handler) PayRide(c *gin.Context) {
	var req PayRideRequest
	if !h.bind(c, &req) {
		return
	}
	ride, ok := h.loadOwnRide(c)
	if !ok {
		return
	}
	var payment models.Payment
	if err := h.db.First(&payment, req.PaymentID).Error; err != nil {
		h.fail(c, lookupErr(err, "Payment method"))
		return
	}
	if payment.UserID != ride.UserID {
		h.fail(c, apperr.Forbidden("This payment method does not belong to you"))
		return
	}
	if ride.Status != models.RideCompleted {
		h.fail(c, apperr.InvalidTransition("Only completed rides can be paid", nil))
		return
	}
	if ride.PaymentStatus == models.PaymentPaid {
		h.fail(c, apperr.Conflict("Ride already paid"))
		return
	}

	res := h.db.Model(&models.Ride{}).
		Where("id = ? AND payment_status <> ?", ride.ID, models.PaymentPaid).
		Updates(map[string]any{"payment_id": payment.ID, "payment_status": models.PaymentPaid})
	if res.Error != nil {
		h.fail(c, apperr.Internal("failed to pay ride", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		h.fail(c, apperr.Conflict("Ride already paid"))
		return
	}
	ride.PaymentID = &payment.ID
	ride.PaymentStatus = models.PaymentPaid
	c.JSON(http.StatusOK, gin.H{"message": "Payment recorded", "ride": ride})
}
