package inspection

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/cloud"
	"github.com/jetsetgo/workshop-console/internal/models"
)

var (
	ErrNoReport           = errors.New("no inspection report for this booking")
	ErrDecisionInProgress = errors.New("a decision for this report is already being sent")
)

// Remote is the slice of the backend the flow needs
type Remote interface {
	CreateInspection(ctx context.Context, report models.InspectionReport) (*models.InspectionReport, error)
	GetInspection(ctx context.Context, bookingID string) (*models.InspectionReport, error)
	DecideInspection(ctx context.Context, bookingID string, status models.ReportStatus, notes string) error
}

// Flow keeps the last-known report per booking and drives submissions and
// decisions through the backend. Stored reports are only ever replaced
// whole, after the backend accepted the change.
type Flow struct {
	remote Remote
	now    func() time.Time

	mu       sync.Mutex
	reports  map[string]models.InspectionReport
	inflight map[string]bool
}

// NewFlow creates a flow backed by remote
func NewFlow(remote Remote) *Flow {
	return &Flow{
		remote:   remote,
		now:      time.Now,
		reports:  make(map[string]models.InspectionReport),
		inflight: make(map[string]bool),
	}
}

// Report returns the last-known report for a booking
func (f *Flow) Report(bookingID string) (models.InspectionReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[bookingID]
	return r, ok
}

// Submit validates the mechanic's issues and creates a pending report.
// Invalid input never reaches the backend.
func (f *Flow) Submit(ctx context.Context, bookingID string, drafts []IssueDraft, mechanicNotes string) (models.InspectionReport, error) {
	report, err := BuildReport(bookingID, drafts, mechanicNotes, f.now())
	if err != nil {
		return models.InspectionReport{}, err
	}

	created, err := f.remote.CreateInspection(ctx, report)
	if err != nil {
		log.WithError(err).WithField("booking_id", bookingID).Error("Inspection submit failed")
		return models.InspectionReport{}, err
	}

	stored := report
	if created != nil && len(created.Issues) > 0 {
		stored = *created
		stored.TotalEstimatedCost = TotalCost(stored.Issues)
	}
	if stored.Status == "" {
		stored.Status = models.ReportPending
	}

	f.mu.Lock()
	f.reports[bookingID] = stored
	f.mu.Unlock()

	log.WithFields(log.Fields{
		"booking_id": bookingID,
		"issues":     len(stored.Issues),
		"total":      stored.TotalEstimatedCost,
	}).Info("Inspection report submitted")
	return stored, nil
}

// Load fetches the report for a booking. No report yet is (nil, nil).
func (f *Flow) Load(ctx context.Context, bookingID string) (*models.InspectionReport, error) {
	report, err := f.remote.GetInspection(ctx, bookingID)
	if errors.Is(err, cloud.ErrNotFound) {
		f.mu.Lock()
		delete(f.reports, bookingID)
		f.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := *report
	if r.BookingID == "" {
		r.BookingID = bookingID
	}
	r.TotalEstimatedCost = TotalCost(r.Issues)

	f.mu.Lock()
	f.reports[bookingID] = r
	f.mu.Unlock()
	return &r, nil
}

// Decide records the customer's decision. The local report changes only if
// the backend accepted it; a second decision on the same report is
// rejected without a backend call.
func (f *Flow) Decide(ctx context.Context, bookingID string, decision models.ReportStatus, notes string) (models.InspectionReport, error) {
	current, ok := f.Report(bookingID)
	if !ok {
		loaded, err := f.Load(ctx, bookingID)
		if err != nil {
			return models.InspectionReport{}, err
		}
		if loaded == nil {
			return models.InspectionReport{}, ErrNoReport
		}
		current = *loaded
	}

	next, err := Decide(current, decision, notes, f.now())
	if err != nil {
		return current, err
	}

	f.mu.Lock()
	if f.inflight[bookingID] {
		f.mu.Unlock()
		return current, ErrDecisionInProgress
	}
	if latest, ok := f.reports[bookingID]; ok && latest.Status != models.ReportPending {
		f.mu.Unlock()
		return latest, ErrNotPending
	}
	f.inflight[bookingID] = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.inflight, bookingID)
		f.mu.Unlock()
	}()

	if err := f.remote.DecideInspection(ctx, bookingID, decision, notes); err != nil {
		log.WithError(err).WithField("booking_id", bookingID).Error("Inspection decision failed")
		return current, err
	}

	f.mu.Lock()
	f.reports[bookingID] = next
	f.mu.Unlock()

	log.WithFields(log.Fields{
		"booking_id": bookingID,
		"decision":   decision,
	}).Info("Inspection decided")
	return next, nil
}
