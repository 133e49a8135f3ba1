package inspection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jetsetgo/workshop-console/internal/cloud"
	"github.com/jetsetgo/workshop-console/internal/models"
)

// MockRemote is a mock implementation of Remote
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) CreateInspection(ctx context.Context, report models.InspectionReport) (*models.InspectionReport, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionReport), args.Error(1)
}

func (m *MockRemote) GetInspection(ctx context.Context, bookingID string) (*models.InspectionReport, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InspectionReport), args.Error(1)
}

func (m *MockRemote) DecideInspection(ctx context.Context, bookingID string, status models.ReportStatus, notes string) error {
	args := m.Called(ctx, bookingID, status, notes)
	return args.Error(0)
}

var scenarioIssues = []IssueDraft{
	{Title: "Worn Brake Pads", EstimatedCost: "1500", Severity: "High"},
	{Title: "Oil Leak", EstimatedCost: "800", Severity: "Medium"},
}

func TestBuildReport_Scenario(t *testing.T) {
	report, err := BuildReport("b-1", scenarioIssues, "check again in 5k km", time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2300.0, report.TotalEstimatedCost)
	assert.Equal(t, models.ReportPending, report.Status)
	assert.Equal(t, models.SeverityHigh, report.Issues[0].Severity)
}

func TestValidateIssues(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		_, err := ValidateIssues(nil)
		var verr *models.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := ValidateIssues([]IssueDraft{{EstimatedCost: "10"}})
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "issues[0]", verr.Field)
	})

	t.Run("missing cost", func(t *testing.T) {
		_, err := ValidateIssues([]IssueDraft{{Title: "Noise"}})
		assert.Error(t, err)
	})

	t.Run("unparseable cost", func(t *testing.T) {
		_, err := ValidateIssues([]IssueDraft{{Title: "Noise", EstimatedCost: "cheap"}})
		assert.Error(t, err)
	})

	t.Run("non-finite cost", func(t *testing.T) {
		for _, raw := range []string{"NaN", "Inf", "+Inf"} {
			_, err := ValidateIssues([]IssueDraft{{Title: "Noise", EstimatedCost: raw}})
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), raw)
			assert.Equal(t, "issues[0]", verr.Field, raw)
		}
		_, err := BuildReport("b-1", []IssueDraft{{Title: "Oil Leak", EstimatedCost: "NaN"}}, "", time.Now())
		assert.Error(t, err)
	})

	t.Run("negative cost", func(t *testing.T) {
		_, err := ValidateIssues([]IssueDraft{{Title: "Noise", EstimatedCost: "-1"}})
		assert.Error(t, err)
	})

	t.Run("unknown severity", func(t *testing.T) {
		_, err := ValidateIssues([]IssueDraft{{Title: "Noise", EstimatedCost: "1", Severity: "Apocalyptic"}})
		assert.Error(t, err)
	})

	t.Run("severity defaults to medium", func(t *testing.T) {
		issues, err := ValidateIssues([]IssueDraft{{Title: "Noise", EstimatedCost: "0"}})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityMedium, issues[0].Severity)
	})
}

func TestDecide_Pure(t *testing.T) {
	now := time.Now()
	pending, err := BuildReport("b-1", scenarioIssues, "", now)
	require.NoError(t, err)

	approved, err := Decide(pending, models.ReportApproved, "please proceed", now)
	require.NoError(t, err)
	assert.Equal(t, models.ReportApproved, approved.Status)
	assert.Equal(t, "please proceed", approved.UserNotes)
	require.NotNil(t, approved.DecidedAt)
	// input untouched
	assert.Equal(t, models.ReportPending, pending.Status)

	_, err = Decide(approved, models.ReportRejected, "changed my mind", now)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = Decide(pending, models.ReportPending, "", now)
	assert.ErrorIs(t, err, ErrInvalidDecision)

	rejected, err := Decide(pending, models.ReportRejected, "too expensive", now)
	require.NoError(t, err)
	_, err = Decide(rejected, models.ReportApproved, "", now)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestFlow_SubmitValidationSkipsRemote(t *testing.T) {
	remote := new(MockRemote)
	flow := NewFlow(remote)

	_, err := flow.Submit(context.Background(), "b-1", []IssueDraft{{Title: "", EstimatedCost: "10"}}, "")
	assert.Error(t, err)

	remote.AssertNotCalled(t, "CreateInspection", mock.Anything, mock.Anything)
	_, ok := flow.Report("b-1")
	assert.False(t, ok)
}

func TestFlow_Submit(t *testing.T) {
	remote := new(MockRemote)
	flow := NewFlow(remote)

	remote.On("CreateInspection", mock.Anything, mock.MatchedBy(func(r models.InspectionReport) bool {
		return r.BookingID == "b-1" && r.TotalEstimatedCost == 2300 && r.Status == models.ReportPending
	})).Return(nil, nil)

	report, err := flow.Submit(context.Background(), "b-1", scenarioIssues, "")
	require.NoError(t, err)
	assert.Equal(t, 2300.0, report.TotalEstimatedCost)
	assert.Equal(t, models.ReportPending, report.Status)

	stored, ok := flow.Report("b-1")
	require.True(t, ok)
	assert.Equal(t, report.TotalEstimatedCost, stored.TotalEstimatedCost)
	remote.AssertExpectations(t)
}

func TestFlow_DecideOnce(t *testing.T) {
	remote := new(MockRemote)
	flow := NewFlow(remote)

	remote.On("CreateInspection", mock.Anything, mock.Anything).Return(nil, nil)
	remote.On("DecideInspection", mock.Anything, "b-1", models.ReportApproved, "ok").Return(nil).Once()

	_, err := flow.Submit(context.Background(), "b-1", scenarioIssues, "")
	require.NoError(t, err)

	decided, err := flow.Decide(context.Background(), "b-1", models.ReportApproved, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.ReportApproved, decided.Status)
	assert.Equal(t, "ok", decided.UserNotes)

	_, err = flow.Decide(context.Background(), "b-1", models.ReportRejected, "no")
	assert.ErrorIs(t, err, ErrNotPending)

	remote.AssertNumberOfCalls(t, "DecideInspection", 1)
}

func TestFlow_DecideRemoteFailureKeepsPending(t *testing.T) {
	remote := new(MockRemote)
	flow := NewFlow(remote)

	// the stale total from the wire is ignored
	remote.On("GetInspection", mock.Anything, "b-2").Return(&models.InspectionReport{
		Issues:             []models.InspectionIssue{{Title: "Oil Leak", EstimatedCost: 800}},
		Status:             models.ReportPending,
		TotalEstimatedCost: 1,
	}, nil)
	remote.On("DecideInspection", mock.Anything, "b-2", models.ReportRejected, "").
		Return(&cloud.RemoteCallError{Op: "decide inspection", StatusCode: 500})

	_, err := flow.Decide(context.Background(), "b-2", models.ReportRejected, "")
	var rerr *cloud.RemoteCallError
	require.True(t, errors.As(err, &rerr))

	stored, ok := flow.Report("b-2")
	require.True(t, ok)
	assert.Equal(t, models.ReportPending, stored.Status)
	assert.Empty(t, stored.UserNotes)
	assert.Equal(t, 800.0, stored.TotalEstimatedCost)
	assert.Equal(t, "b-2", stored.BookingID)
}

func TestFlow_LoadNotFoundIsEmpty(t *testing.T) {
	remote := new(MockRemote)
	flow := NewFlow(remote)

	remote.On("GetInspection", mock.Anything, "b-3").
		Return(nil, &cloud.RemoteCallError{Op: "get inspection", StatusCode: 404, Err: cloud.ErrNotFound})

	report, err := flow.Load(context.Background(), "b-3")
	assert.NoError(t, err)
	assert.Nil(t, report)

	_, err = flow.Decide(context.Background(), "b-3", models.ReportApproved, "")
	assert.ErrorIs(t, err, ErrNoReport)
}
