package models

import (
	"fmt"
	"time"
)

// NotificationType tags what a notification is about
type NotificationType string

const (
	NotificationBooking   NotificationType = "booking"
	NotificationSparePart NotificationType = "spare-part"
	NotificationShop      NotificationType = "shop"
	NotificationService   NotificationType = "service"
)

// View is a console destination a notification links to
type View string

const (
	ViewBookings   View = "bookings"
	ViewSpareParts View = "spare-parts"
	ViewProfile    View = "profile"
	ViewServices   View = "services"
)

// NotificationEvent is a transient, in-memory notification
type NotificationEvent struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	BookingID string           `json:"bookingId,omitempty"`
}

// DestinationView maps a notification type to the view it opens
func DestinationView(t NotificationType) (View, error) {
	switch t {
	case NotificationBooking:
		return ViewBookings, nil
	case NotificationSparePart:
		return ViewSpareParts, nil
	case NotificationShop:
		return ViewProfile, nil
	case NotificationService:
		return ViewServices, nil
	default:
		return "", fmt.Errorf("unknown notification type %q", t)
	}
}
