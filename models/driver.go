package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Driver is a fleet member. UserID links the account that acts as this
// driver in ride and verification transitions.
type Driver struct {
	ID                 uint               `json:"id" gorm:"primaryKey"`
	UserID             *uint              `json:"user_id" gorm:"uniqueIndex"`
	User               *User              `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	FirstName          string             `json:"first_name" gorm:"not null"`
	LastName           string             `json:"last_name" gorm:"not null"`
	Email              string             `json:"email" gorm:"uniqueIndex;not null"`
	Phone              string             `json:"phone" gorm:"uniqueIndex;not null"`
	Photo              string             `json:"photo"`
	Rating             float64            `json:"rating" gorm:"default:0"`
	TotalRides         int                `json:"total_rides" gorm:"default:0"`
	AboutMe            string             `json:"about_me"`
	FromLocation       string             `json:"from_location"`
	Languages          string             `json:"languages"`
	IsPilot            bool               `json:"is_pilot" gorm:"default:false"`
	LicenseNumber      string             `json:"license_number" gorm:"not null"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"not null;default:'pending'"`
	CurrentLat         float64            `json:"current_lat"`
	CurrentLng         float64            `json:"current_lng"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status" gorm:"not null;default:'offline'"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Vehicle carries the per-vehicle tariff used to price rides.
type Vehicle struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	DriverID          uint            `json:"driver_id" gorm:"index;not null"`
	Driver            *Driver         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	VehicleType       string          `json:"vehicle_type" gorm:"not null"`
	Style             string          `json:"style"`
	Make              string          `json:"make" gorm:"not null"`
	Model             string          `json:"model" gorm:"not null"`
	Year              int             `json:"year"`
	LicensePlate      string          `json:"license_plate" gorm:"not null"`
	PassengerCapacity int             `json:"passenger_capacity"`
	Photo             string          `json:"photo"`
	BaseFare          decimal.Decimal `json:"base_fare" gorm:"type:decimal(10,2);not null"`
	PerMinuteRate     decimal.Decimal `json:"per_minute_rate" gorm:"type:decimal(10,2);not null"`
	PerKilometerRate  decimal.Decimal `json:"per_kilometer_rate" gorm:"type:decimal(10,2);not null"`
	Status            VehicleStatus   `json:"status" gorm:"not null;default:'active'"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
