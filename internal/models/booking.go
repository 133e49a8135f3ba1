package models

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in-progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// IsValidBookingStatus checks if a status is one the backend accepts
func IsValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingInProgress, BookingCompleted, BookingCancelled:
		return true
	default:
		return false
	}
}

// Vehicle is the customer's vehicle attached to a booking
type Vehicle struct {
	Model        string `json:"model"`
	Registration string `json:"registration"`
	Year         int    `json:"year,omitempty"`
}

// Booking is a scheduled or in-progress service request. Bookings are
// created by the backend and only read or transitioned here.
type Booking struct {
	ID            string        `json:"id"`
	CustomerName  string        `json:"customerName"`
	CustomerPhone string        `json:"customerPhone,omitempty"`
	Vehicle       Vehicle       `json:"vehicle"`
	ServiceType   string        `json:"serviceType"`
	BookingType   string        `json:"bookingType,omitempty"`
	Date          string        `json:"date"` // YYYY-MM-DD
	Time          string        `json:"time,omitempty"`
	Status        BookingStatus `json:"status"`
	Amount        float64       `json:"amount"`
	Notes         string        `json:"notes,omitempty"`
}
