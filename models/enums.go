package models

// RideStatus is the lifecycle state of a ride.
type RideStatus string

const (
	RideRequested  RideStatus = "requested"
	RideAccepted   RideStatus = "accepted"
	RideInProgress RideStatus = "in_progress"
	RideCompleted  RideStatus = "completed"
	RideCancelled  RideStatus = "cancelled"
)

// VerificationStatus tracks driver document review.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

type AvailabilityStatus string

const (
	AvailabilityOffline   AvailabilityStatus = "offline"
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityOnTrip    AvailabilityStatus = "on_trip"
)

func (s AvailabilityStatus) Valid() bool {
	switch s {
	case AvailabilityOffline, AvailabilityAvailable, AvailabilityOnTrip:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentCard   PaymentType = "card"
	PaymentPaypal PaymentType = "paypal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type VehicleStatus string

const (
	VehicleActive   VehicleStatus = "active"
	VehicleInactive VehicleStatus = "inactive"
)

func (s VehicleStatus) Valid() bool {
	return s == VehicleActive || s == VehicleInactive
}
