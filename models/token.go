package models

import "time"

// RevokedToken is a denylisted token id, kept until the token expires.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `gorm:"index;not null"`
}
