package models

import "time"

// Urgency of a spare-part request
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IsValidUrgency checks if an urgency level is known
func IsValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// SparePartStatus tracks sourcing progress of a spare-part request
type SparePartStatus string

const (
	SparePartPending   SparePartStatus = "pending"
	SparePartApproved  SparePartStatus = "approved"
	SparePartDelivered SparePartStatus = "delivered"
	SparePartRejected  SparePartStatus = "rejected"
)

// SparePartRequest is a mechanic's request to source a part for a service.
// ServiceID refers to a Booking by id for lookup only.
type SparePartRequest struct {
	ID           string          `json:"id"`
	PartName     string          `json:"partName"`
	CarModel     string          `json:"carModel"`
	Quantity     int             `json:"quantity"`
	Urgency      Urgency         `json:"urgency"`
	SerialNumber string          `json:"serialNumber,omitempty"`
	Status       SparePartStatus `json:"status"`
	RequestedAt  time.Time       `json:"requestedAt"`
	ServiceID    string          `json:"serviceId,omitempty"`
}
