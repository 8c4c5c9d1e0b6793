package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleStaff UserRole = "staff"
)

func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleStaff
}

// User is an account. TokenVersion is bumped whenever previously issued
// tokens must stop working (password or role change).
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	FirstName    string    `json:"first_name" gorm:"not null"`
	LastName     string    `json:"last_name" gorm:"not null"`
	Phone        string    `json:"phone" gorm:"index;not null"`
	Role         UserRole  `json:"role" gorm:"not null;default:'user'"`
	TokenVersion int       `json:"-" gorm:"not null;default:0"`
	CityID       *uint     `json:"city_id"`
	City         *City     `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type City struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;index"`
}

// UserProfile holds the optional public details of a user, one per account.
type UserProfile struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	User         *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	ProfilePhoto *string   `json:"profile_photo"`
	About        *string   `json:"about"`
	Location     string    `json:"location"`
	Language     string    `json:"language"`
	PhoneNumber  string    `json:"phone_number"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Settings struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	UserID               uint      `json:"user_id" gorm:"index;not null"`
	User                 *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Language             string    `json:"language" gorm:"not null;default:'en'"`
	NotificationsEnabled bool      `json:"notifications_enabled" gorm:"not null"`
	DarkMode             bool      `json:"dark_mode" gorm:"not null"`
	Currency             string    `json:"currency" gorm:"not null;default:'USD'"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Settings) TableName() string { return "settings" }

// RecentLocation is a place the user travelled to or from; Frequency counts
// how many times it was used.
type RecentLocation struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"index;not null"`
	User         *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	LocationName string    `json:"location_name" gorm:"not null"`
	Address      string    `json:"address" gorm:"not null"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Frequency    int       `json:"frequency" gorm:"not null;default:1"`
	LastUsed     time.Time `json:"last_used" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Favorite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	DriverID  uint      `json:"driver_id" gorm:"not null"`
	Driver    *Driver   `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	VehicleID *uint     `json:"vehicle_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
