package dashboard

import (
	"strings"

	"github.com/jetsetgo/workshop-console/internal/models"
)

// StatusAll matches every record
const StatusAll = "all"

// DefaultPageSize is the number of rows per page
const DefaultPageSize = 10

// FilterBookings keeps bookings whose customer name, vehicle model,
// service type or id contains query (case-insensitive) and whose status
// matches status ("all" or empty matches any).
func FilterBookings(bookings []models.Booking, query, status string) []models.Booking {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if !statusMatches(string(b.Status), status) {
			continue
		}
		if q != "" && !containsAny(q, b.CustomerName, b.Vehicle.Model, b.ServiceType, b.ID) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// FilterSpareParts keeps requests whose part name, car model or service id
// contains query and whose status matches.
func FilterSpareParts(parts []models.SparePartRequest, query, status string) []models.SparePartRequest {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.SparePartRequest, 0, len(parts))
	for _, p := range parts {
		if !statusMatches(string(p.Status), status) {
			continue
		}
		if q != "" && !containsAny(q, p.PartName, p.CarModel, p.ServiceID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func statusMatches(have, want string) bool {
	return want == "" || want == StatusAll || have == want
}

func containsAny(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Page is one page of a filtered collection
type Page[T any] struct {
	Items  []T `json:"items"`
	Number int `json:"page"`
	Count  int `json:"pageCount"`
	Total  int `json:"total"`
	Size   int `json:"pageSize"`
}

// Next is the following page number, or the current one on the last page
func (p Page[T]) Next() int {
	if p.Number < p.Count {
		return p.Number + 1
	}
	return p.Number
}

// Prev is the previous page number, or the current one on the first page
func (p Page[T]) Prev() int {
	if p.Number > 1 {
		return p.Number - 1
	}
	return p.Number
}

// PageCount is ceil(total/size)
func PageCount(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// ClampPage pins page into [1, count]; with no pages it is 1
func ClampPage(page, count int) int {
	if page > count {
		page = count
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Paginate returns the requested page of items, clamped to a valid page
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	count := PageCount(len(items), size)
	page = ClampPage(page, count)

	start := (page - 1) * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return Page[T]{
		Items:  items[start:end:end],
		Number: page,
		Count:  count,
		Total:  len(items),
		Size:   size,
	}
}
