package dashboard

import (
	"time"

	"github.com/jetsetgo/workshop-console/internal/models"
)

// Revenue is derived from the bookings collection on demand
type Revenue struct {
	Total     float64 `json:"total"`
	Monthly   float64 `json:"monthly"`
	LastMonth float64 `json:"lastMonth"`
	Growth    float64 `json:"growth"`
}

// ComputeRevenue sums completed bookings overall, in now's month and in
// the month before it.
func ComputeRevenue(bookings []models.Booking, now time.Time) Revenue {
	year, month := now.Year(), now.Month()
	lastYear, lastMonth := year, month-1
	if lastMonth < time.January {
		lastMonth = time.December
		lastYear--
	}

	var r Revenue
	for _, b := range bookings {
		if b.Status != models.BookingCompleted {
			continue
		}
		r.Total += b.Amount

		d, ok := bookingDate(b.Date)
		if !ok {
			continue
		}
		switch {
		case d.Year() == year && d.Month() == month:
			r.Monthly += b.Amount
		case d.Year() == lastYear && d.Month() == lastMonth:
			r.LastMonth += b.Amount
		}
	}

	if r.LastMonth > 0 {
		r.Growth = (r.Monthly - r.LastMonth) / r.LastMonth * 100
	}
	return r
}

// bookingDate accepts YYYY-MM-DD and full RFC 3339 timestamps
func bookingDate(s string) (time.Time, bool) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, true
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, true
	}
	return time.Time{}, false
}
