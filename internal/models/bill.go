package models

import "time"

// BillItem is one line of a bill
type BillItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Bill is the itemized final charge for a booking, net of any advance.
// TotalAmount and Balance are derived from Items and AdvanceReceived.
type Bill struct {
	BookingID       string     `json:"bookingId"`
	Items           []BillItem `json:"items"`
	TotalAmount     float64    `json:"totalAmount"`
	AdvanceReceived float64    `json:"advanceReceived"`
	Balance         float64    `json:"balance"`
	GeneratedAt     time.Time  `json:"generatedAt"`
}
