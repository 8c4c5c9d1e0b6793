package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ride struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	UserID          uint            `json:"user_id" gorm:"index;not null"`
	User            *User           `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	DriverID        uint            `json:"driver_id" gorm:"index;not null"`
	VehicleID       uint            `json:"vehicle_id" gorm:"not null"`
	RideType        string          `json:"ride_type" gorm:"not null"`
	VehicleType     string          `json:"vehicle_type" gorm:"not null"`
	PickupLocation  string          `json:"pickup_location" gorm:"not null"`
	PickupLat       float64         `json:"pickup_lat"`
	PickupLng       float64         `json:"pickup_lng"`
	DropoffLocation string          `json:"dropoff_location" gorm:"not null"`
	DropoffLat      float64         `json:"dropoff_lat"`
	DropoffLng      float64         `json:"dropoff_lng"`
	ScheduledTime   *time.Time      `json:"scheduled_time"`
	StartTime       *time.Time      `json:"start_time"`
	EndTime         *time.Time      `json:"end_time"`
	Status          RideStatus      `json:"status" gorm:"not null;default:'requested'"`
	DistanceKm      float64         `json:"distance_km"`
	BaseFare        decimal.Decimal `json:"base_fare" gorm:"type:decimal(10,2);not null"`
	DistanceFare    decimal.Decimal `json:"distance_fare" gorm:"type:decimal(10,2);not null"`
	TimeFare        decimal.Decimal `json:"time_fare" gorm:"type:decimal(10,2);not null"`
	TipAmount       decimal.Decimal `json:"tip_amount" gorm:"type:decimal(10,2);not null;default:0"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	Rating          *int            `json:"rating"`
	Review          *string         `json:"review"`
	CancelReason    *string         `json:"cancel_reason"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"not null;default:'pending'"`
	PaymentID       *uint           `json:"payment_id"`
	Payment         *Payment        `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RideStatusHistory records every status change of a ride.
type RideStatusHistory struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	RideID     uint       `json:"ride_id" gorm:"index;not null"`
	Ride       *Ride      `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	FromStatus RideStatus `json:"from_status"`
	ToStatus   RideStatus `json:"to_status" gorm:"not null"`
	Actor      string     `json:"actor" gorm:"not null"`
	ChangedBy  uint       `json:"changed_by"`
	Note       string     `json:"note"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Payment is a stored payment method. Exactly one of the card fields or
// PaypalEmail is set, depending on PaymentType.
type Payment struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	UserID      uint        `json:"user_id" gorm:"index;not null"`
	User        *User       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	PaymentType PaymentType `json:"payment_type" gorm:"not null"`
	CardNumber  *string     `json:"card_number"`
	CardHolder  *string     `json:"card_holder"`
	ExpiryMonth *int        `json:"expiry_month"`
	ExpiryYear  *int        `json:"expiry_year"`
	CardType    *string     `json:"card_type"`
	IsDefault   bool        `json:"is_default" gorm:"not null;default:false"`
	PaypalEmail *string     `json:"paypal_email"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
