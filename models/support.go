package models

import "time"

type SupportTicket struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UserID      uint           `json:"user_id" gorm:"index;not null"`
	User        *User          `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Subject     string         `json:"subject" gorm:"not null"`
	Description string         `json:"description" gorm:"not null"`
	Status      TicketStatus   `json:"status" gorm:"not null;default:'open'"`
	Priority    TicketPriority `json:"priority" gorm:"not null;default:'medium'"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
