// Package realtime connects to the backend's push channel and fans inbound
// events out to subscribed listeners.
package realtime

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Inbound and outbound event names
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventError         = "error"
	EventNotification  = "notification"
	EventNewBooking    = "new_booking"
	EventBookingUpdate = "booking_update"

	EventRegisterMechanic = "register_mechanic"
)

// ErrNotConnected is returned by Emit while the transport is down
var ErrNotConnected = errors.New("realtime channel not connected")

// Payload is the shared body of notification, new_booking and booking_update
type Payload struct {
	BookingID    string `json:"bookingId,omitempty"`
	ID           string `json:"id,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
	Message      string `json:"message,omitempty"`
	Type         string `json:"type,omitempty"`
}

// BookingRef returns the booking the event refers to, if any
func (p Payload) BookingRef() string {
	if p.BookingID != "" {
		return p.BookingID
	}
	return p.ID
}

// Event is one inbound event. Err is set for EventError.
type Event struct {
	Name    string
	Payload Payload
	Err     error
}

// Listener receives events. It runs on the transport's goroutine and
// must not block.
type Listener func(Event)

// Channel is a persistent bidirectional event channel
type Channel interface {
	Subscribe(l Listener) (unsubscribe func())
	Emit(event string, data interface{}) error
	Connected() bool
	Status() ConnectionStatus
	Start()
	Stop()
}

// ConnectionStatus represents the realtime connection status
type ConnectionStatus struct {
	Transport    string    `json:"transport"`
	Connected    bool      `json:"connected"`
	Reconnecting bool      `json:"reconnecting"`
	LastError    string    `json:"last_error,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

// Hub keeps the listener registry shared by the transports
type Hub struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]Listener)}
}

// Subscribe registers l; the returned func removes it and is safe to call twice
func (h *Hub) Subscribe(l Listener) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Len returns the number of registered listeners
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Dispatch delivers e to every listener registered at call time
func (h *Hub) Dispatch(e Event) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	// subscription order
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, h.listeners[id])
	}
	h.mu.Unlock()

	for _, l := range ls {
		l(e)
	}
}
