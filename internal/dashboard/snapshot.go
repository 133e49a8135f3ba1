package dashboard

import (
	"sort"
	"time"

	"github.com/jetsetgo/workshop-console/internal/models"
)

// Snapshot is one immutable view of the dashboard state. Slices and maps
// are never written after a snapshot is published; transitions copy.
type Snapshot struct {
	Profile       *models.Profile
	Bookings      []models.Booking
	SpareParts    []models.SparePartRequest
	Highlighted   map[string]struct{}
	Notifications []models.NotificationEvent // newest first
	LoadedAt      time.Time

	mutationSeq uint64
}

// Transition derives the next snapshot from the current one
type Transition func(Snapshot) Snapshot

// IsHighlighted reports whether a booking is in the highlight set
func (s Snapshot) IsHighlighted(id string) bool {
	_, ok := s.Highlighted[id]
	return ok
}

// HighlightedIDs returns the highlight set sorted
func (s Snapshot) HighlightedIDs() []string {
	ids := make([]string, 0, len(s.Highlighted))
	for id := range s.Highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unread counts notifications not yet marked read
func (s Snapshot) Unread() int {
	n := 0
	for _, ev := range s.Notifications {
		if !ev.Read {
			n++
		}
	}
	return n
}

// Booking looks a booking up by id
func (s Snapshot) Booking(id string) (models.Booking, bool) {
	for _, b := range s.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return models.Booking{}, false
}

func withBookings(bookings []models.Booking) Transition {
	return func(s Snapshot) Snapshot {
		s.Bookings = bookings
		return s
	}
}

// withBookingStatus replaces the status of the booking with id and leaves
// every other booking as it was.
func withBookingStatus(id string, status models.BookingStatus) Transition {
	return func(s Snapshot) Snapshot {
		next := make([]models.Booking, len(s.Bookings))
		copy(next, s.Bookings)
		for i := range next {
			if next[i].ID == id {
				next[i].Status = status
			}
		}
		s.Bookings = next
		s.mutationSeq++
		return s
	}
}

func withSparePart(p models.SparePartRequest) Transition {
	return func(s Snapshot) Snapshot {
		next := make([]models.SparePartRequest, 0, len(s.SpareParts)+1)
		next = append(next, p)
		next = append(next, s.SpareParts...)
		s.SpareParts = next
		return s
	}
}

func withProfile(p models.Profile) Transition {
	return func(s Snapshot) Snapshot {
		s.Profile = &p
		return s
	}
}

func withShopOpen(open bool) Transition {
	return func(s Snapshot) Snapshot {
		if s.Profile == nil {
			return s
		}
		p := *s.Profile
		p.ShopOpen = open
		s.Profile = &p
		return s
	}
}

func withHighlight(id string) Transition {
	return func(s Snapshot) Snapshot {
		if s.IsHighlighted(id) {
			return s
		}
		next := make(map[string]struct{}, len(s.Highlighted)+1)
		for k := range s.Highlighted {
			next[k] = struct{}{}
		}
		next[id] = struct{}{}
		s.Highlighted = next
		return s
	}
}

func withoutHighlight(id string) Transition {
	return func(s Snapshot) Snapshot {
		if !s.IsHighlighted(id) {
			return s
		}
		next := make(map[string]struct{}, len(s.Highlighted))
		for k := range s.Highlighted {
			if k != id {
				next[k] = struct{}{}
			}
		}
		s.Highlighted = next
		return s
	}
}

// withNotification puts n at the head of the feed and drops the oldest
// entries beyond capacity.
func withNotification(n models.NotificationEvent, capacity int) Transition {
	return func(s Snapshot) Snapshot {
		size := len(s.Notifications) + 1
		if capacity > 0 && size > capacity {
			size = capacity
		}
		next := make([]models.NotificationEvent, 0, size)
		next = append(next, n)
		next = append(next, s.Notifications[:size-1]...)
		s.Notifications = next
		return s
	}
}

// withRead marks one notification read, or all of them when id is empty
func withRead(id string) Transition {
	return func(s Snapshot) Snapshot {
		next := make([]models.NotificationEvent, len(s.Notifications))
		copy(next, s.Notifications)
		for i := range next {
			if id == "" || next[i].ID == id {
				next[i].Read = true
			}
		}
		s.Notifications = next
		return s
	}
}
