package tracking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"leadtrack/internal/audit"
	"leadtrack/internal/leads/metrics"
	"leadtrack/internal/leads/models"
	"leadtrack/internal/tracking/mocks"
	id "leadtrack/pkg/domain"
	dErrors "leadtrack/pkg/domain-errors"
	"leadtrack/pkg/requestcontext"
)

//go:generate mockgen -source=tracker.go -destination=mocks/mocks.go -package=mocks LeadService,AuditPublisher
type TrackerSuite struct {
	suite.Suite
	ctx     context.Context
	leads   *mocks.MockLeadService
	audit   *mocks.MockAuditPublisher
	metrics *metrics.Metrics
	tracker *Tracker
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
	s.leads = mocks.NewMockLeadService(ctrl)
	s.audit = mocks.NewMockAuditPublisher(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.tracker = NewTracker(s.leads,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.audit),
		WithDeriver(newTestDeriver()),
	)
}

func (s *TrackerSuite) TestSubmitIdentifier_StoredLead() {
	stored := &models.Lead{
		FullName:      "Maria Silva",
		NationalID:    "12345678901",
		Stage:         5,
		PaymentStatus: models.PaymentPending,
	}
	s.leads.EXPECT().ReadByIdentifier(gomock.Any(), "12345678901").Return(stored, nil)

	res, err := s.tracker.SubmitIdentifier(s.ctx, "123.456.789-01")
	s.Require().NoError(err)

	s.False(res.Synthesized)
	s.Same(stored, res.Lead)
	s.Equal("123.456.789-01", res.FormattedCPF)
	s.Len(res.Steps, 11)
	s.True(res.Steps[4].Completed)
	s.False(res.Steps[5].Completed)
	s.Equal(StatusAwaitingRelease, res.CurrentStatus)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TrackingLookups.WithLabelValues("store")))
}

func (s *TrackerSuite) TestSubmitIdentifier_PaidLead() {
	stored := &models.Lead{NationalID: "12345678901", Stage: 12, PaymentStatus: models.PaymentPaid}
	s.leads.EXPECT().ReadByIdentifier(gomock.Any(), "12345678901").Return(stored, nil)

	res, err := s.tracker.SubmitIdentifier(s.ctx, "12345678901")
	s.Require().NoError(err)

	s.Len(res.Steps, 12)
	s.Equal(StatusReleased, res.CurrentStatus)
}

func (s *TrackerSuite) TestSubmitIdentifier_UnknownFallsBackToCustoms() {
	s.leads.EXPECT().ReadByIdentifier(gomock.Any(), "98765432100").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "lead not found"))

	res, err := s.tracker.SubmitIdentifier(s.ctx, "98765432100")
	s.Require().NoError(err)

	s.True(res.Synthesized)
	s.Equal(models.CustomsStage, res.Lead.Stage)
	s.False(res.Lead.IsPaid())
	s.Equal("João Silva Santos", res.Lead.FullName)
	s.Len(res.Steps, 11)
	for _, step := range res.Steps {
		s.True(step.Completed)
	}
	s.True(res.Steps[10].NeedsLiberation)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TrackingLookups.WithLabelValues("synthesized_not_found")))
}

func (s *TrackerSuite) TestSubmitIdentifier_StoreFailureFallsBack() {
	s.leads.EXPECT().ReadByIdentifier(gomock.Any(), "98765432100").
		Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeStore, "record store error"))
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.Equal(string(audit.EventTrackingFallback), e.Action)
		s.Equal(id.NationalID("98765432100").Redacted(), e.Subject)
		s.Equal("record store error", e.Reason)
		return nil
	})

	res, err := s.tracker.SubmitIdentifier(s.ctx, "98765432100")
	s.Require().NoError(err)

	s.True(res.Synthesized)
	s.Equal(models.CustomsStage, res.Lead.Stage)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TrackingLookups.WithLabelValues("synthesized_error")))
}

func (s *TrackerSuite) TestSubmitIdentifier_InvalidIdentifier() {
	for _, raw := range []string{"", "1234567890", "111.111.111-11"} {
		_, err := s.tracker.SubmitIdentifier(s.ctx, raw)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "input %q", raw)
	}
}

func (s *TrackerSuite) TestApplyPayment() {
	s.Run("persisted", func() {
		s.leads.EXPECT().MarkPaid(gomock.Any(), "12345678901").
			Return(&models.MutationResult{Lead: &models.Lead{}, Applied: true}, nil)

		res, err := s.tracker.ApplyPayment(s.ctx, "123.456.789-01")
		s.Require().NoError(err)
		s.True(res.Persisted)
		s.Len(res.Steps, 12)
		s.Equal(StatusReleased, res.CurrentStatus)
	})

	s.Run("store failure still releases", func() {
		s.leads.EXPECT().MarkPaid(gomock.Any(), "12345678901").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "lead not found"))

		res, err := s.tracker.ApplyPayment(s.ctx, "12345678901")
		s.Require().NoError(err)
		s.False(res.Persisted)
		s.Len(res.Steps, 12)
		s.True(res.Steps[11].Completed)
	})

	s.Run("legacy layout reports the skipped write", func() {
		s.leads.EXPECT().MarkPaid(gomock.Any(), "12345678901").
			Return(&models.MutationResult{Lead: &models.Lead{}, Applied: false, Warning: "not persisted"}, nil)

		res, err := s.tracker.ApplyPayment(s.ctx, "12345678901")
		s.Require().NoError(err)
		s.False(res.Persisted)
		s.Equal(StatusReleased, res.CurrentStatus)
	})

	s.Run("invalid identifier", func() {
		_, err := s.tracker.ApplyPayment(s.ctx, "123")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TrackerSuite) TestSession() {
	session := NewSession(s.tracker)

	_, err := session.Pay(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Nil(session.Current())

	s.leads.EXPECT().ReadByIdentifier(gomock.Any(), "98765432100").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "lead not found"))
	_, err = session.Submit(s.ctx, "987.654.321-00")
	s.Require().NoError(err)
	s.Require().NotNil(session.Current())

	_, err = session.Submit(s.ctx, "bad")
	s.Error(err)
	s.Equal(id.NationalID("98765432100"), session.Current().Lead.NationalID, "failed submit keeps the lookup")

	s.leads.EXPECT().MarkPaid(gomock.Any(), "98765432100").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "lead not found"))
	pay, err := session.Pay(s.ctx)
	s.Require().NoError(err)
	s.False(pay.Persisted)

	current := session.Current()
	s.True(current.Lead.IsPaid())
	s.Equal(models.ReleaseStage, current.Lead.Stage)
	s.Len(current.Steps, 12)
	s.Equal(StatusReleased, current.CurrentStatus)

	session.Reset()
	s.Nil(session.Current())
}
