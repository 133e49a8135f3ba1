// Package inspection covers the inspection report lifecycle: the mechanic
// submits issues, the customer approves or rejects once.
package inspection

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jetsetgo/workshop-console/internal/models"
)

var (
	ErrNotPending      = errors.New("inspection report is no longer pending")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
)

// IssueDraft is an issue as typed into the mechanic's form
type IssueDraft struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	EstimatedCost     string `json:"estimatedCost"`
	Severity          string `json:"severity"`
	RecommendedAction string `json:"recommendedAction"`
}

// ValidateIssues turns drafts into issues. Every issue needs a title and a
// non-negative cost; an empty set is rejected.
func ValidateIssues(drafts []IssueDraft) ([]models.InspectionIssue, error) {
	if len(drafts) == 0 {
		return nil, models.NewValidationError("issues", "at least one issue is required")
	}

	issues := make([]models.InspectionIssue, 0, len(drafts))
	for i, d := range drafts {
		field := fmt.Sprintf("issues[%d]", i)

		title := strings.TrimSpace(d.Title)
		if title == "" {
			return nil, models.NewValidationError(field, "title is required")
		}

		raw := strings.TrimSpace(d.EstimatedCost)
		if raw == "" {
			return nil, models.NewValidationError(field, "estimated cost is required")
		}
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(cost) || math.IsInf(cost, 0) {
			return nil, models.NewValidationError(field, "estimated cost %q is not a number", raw)
		}
		if cost < 0 {
			return nil, models.NewValidationError(field, "estimated cost must not be negative")
		}

		sev := models.Severity(strings.TrimSpace(d.Severity))
		if sev == "" {
			sev = models.SeverityMedium
		}
		if !models.IsValidSeverity(sev) {
			return nil, models.NewValidationError(field, "unknown severity %q", d.Severity)
		}

		issues = append(issues, models.InspectionIssue{
			Title:             title,
			Description:       strings.TrimSpace(d.Description),
			EstimatedCost:     cost,
			Severity:          sev,
			RecommendedAction: strings.TrimSpace(d.RecommendedAction),
		})
	}
	return issues, nil
}

// TotalCost sums the estimated cost of issues
func TotalCost(issues []models.InspectionIssue) float64 {
	var total float64
	for _, is := range issues {
		total += is.EstimatedCost
	}
	return total
}

// BuildReport validates drafts and returns a pending report whose total is
// derived from the issues as they are now.
func BuildReport(bookingID string, drafts []IssueDraft, mechanicNotes string, now time.Time) (models.InspectionReport, error) {
	if strings.TrimSpace(bookingID) == "" {
		return models.InspectionReport{}, models.NewValidationError("bookingId", "booking is required")
	}
	issues, err := ValidateIssues(drafts)
	if err != nil {
		return models.InspectionReport{}, err
	}

	return models.InspectionReport{
		BookingID:          bookingID,
		Issues:             issues,
		MechanicNotes:      strings.TrimSpace(mechanicNotes),
		TotalEstimatedCost: TotalCost(issues),
		Status:             models.ReportPending,
		CreatedAt:          now,
	}, nil
}

// Decide applies a customer decision to a pending report and returns the
// new report. Approved and rejected are terminal.
func Decide(r models.InspectionReport, decision models.ReportStatus, notes string, now time.Time) (models.InspectionReport, error) {
	if decision != models.ReportApproved && decision != models.ReportRejected {
		return r, ErrInvalidDecision
	}
	if r.Status != models.ReportPending {
		return r, ErrNotPending
	}

	next := r
	next.Issues = append([]models.InspectionIssue(nil), r.Issues...)
	next.TotalEstimatedCost = TotalCost(next.Issues)
	next.Status = decision
	next.UserNotes = notes
	decided := now
	next.DecidedAt = &decided
	return next, nil
}
