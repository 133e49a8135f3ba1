package models

import "time"

// Severity of an inspection issue
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// IsValidSeverity checks if a severity level is known
func IsValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// ReportStatus is the customer's decision state on an inspection report
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportApproved ReportStatus = "approved"
	ReportRejected ReportStatus = "rejected"
)

// InspectionIssue is one problem found during an inspection
type InspectionIssue struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	EstimatedCost     float64  `json:"estimatedCost"`
	Severity          Severity `json:"severity"`
	RecommendedAction string   `json:"recommendedAction,omitempty"`
}

// InspectionReport is the mechanic-authored list of issues awaiting the
// customer's approval.
type InspectionReport struct {
	BookingID          string            `json:"bookingId"`
	Issues             []InspectionIssue `json:"issues"`
	MechanicNotes      string            `json:"mechanicNotes,omitempty"`
	TotalEstimatedCost float64           `json:"totalEstimatedCost"`
	Status             ReportStatus      `json:"status"`
	UserNotes          string            `json:"userNotes,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	DecidedAt          *time.Time        `json:"decidedAt,omitempty"`
}
