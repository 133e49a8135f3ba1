// Package billing computes bill totals and balances from user-entered line
// items. Everything here is pure; callers submit the result themselves.
package billing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jetsetgo/workshop-console/internal/models"
)

// ItemDraft is a bill line as typed into the form
type ItemDraft struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Total sums item prices
func Total(items []models.BillItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price
	}
	return total
}

// Balance is what remains after the advance, never below zero
func Balance(total, advance float64) float64 {
	if b := total - advance; b > 0 {
		return b
	}
	return 0
}

// ParseItems turns drafts into bill items. Rows left entirely blank are
// skipped; any other row must have a name and a price >= 0.
func ParseItems(drafts []ItemDraft) ([]models.BillItem, error) {
	items := make([]models.BillItem, 0, len(drafts))
	for i, d := range drafts {
		name := strings.TrimSpace(d.Name)
		raw := strings.TrimSpace(d.Price)
		if name == "" && raw == "" {
			continue
		}

		field := fmt.Sprintf("items[%d]", i)
		if name == "" {
			return nil, models.NewValidationError(field, "name is required")
		}
		price, err := parsePrice(raw)
		if err != nil {
			return nil, models.NewValidationError(field, "%s", err.Error())
		}
		items = append(items, models.BillItem{Name: name, Price: price})
	}

	if len(items) == 0 {
		return nil, models.NewValidationError("items", "at least one complete item is required")
	}
	return items, nil
}

// ParseAdvance parses the advance amount. Empty means no advance.
func ParseAdvance(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := parsePrice(raw)
	if err != nil {
		return 0, models.NewValidationError("advanceReceived", "%s", err.Error())
	}
	return v, nil
}

// BuildBill validates drafts and advance and returns a bill with derived
// total and balance.
func BuildBill(bookingID string, drafts []ItemDraft, advance string, now time.Time) (models.Bill, error) {
	if strings.TrimSpace(bookingID) == "" {
		return models.Bill{}, models.NewValidationError("bookingId", "booking is required")
	}
	items, err := ParseItems(drafts)
	if err != nil {
		return models.Bill{}, err
	}
	adv, err := ParseAdvance(advance)
	if err != nil {
		return models.Bill{}, err
	}

	return Recompute(models.Bill{
		BookingID:       bookingID,
		Items:           items,
		AdvanceReceived: adv,
		GeneratedAt:     now,
	}), nil
}

// Recompute re-derives TotalAmount and Balance from the bill's items
func Recompute(b models.Bill) models.Bill {
	b.TotalAmount = Total(b.Items)
	b.Balance = Balance(b.TotalAmount, b.AdvanceReceived)
	return b
}

func parsePrice(raw string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("price is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("price %q is not a number", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("price must not be negative")
	}
	return v, nil
}
