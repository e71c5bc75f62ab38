package tracking

import (
	"context"

	"leadtrack/internal/leads/models"
	dErrors "leadtrack/pkg/domain-errors"
)

// Session holds one customer's current lookup between the identifier
// submission and the payment step. It is not safe for concurrent use.
type Session struct {
	tracker *Tracker
	current *Result
}

func NewSession(tracker *Tracker) *Session {
	return &Session{tracker: tracker}
}

// Submit replaces the current lookup. A failed submission keeps the previous one.
func (s *Session) Submit(ctx context.Context, raw string) (*Result, error) {
	res, err := s.tracker.SubmitIdentifier(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.current = res
	return res, nil
}

// Pay applies the payment to the current lookup and marks it released.
func (s *Session) Pay(ctx context.Context) (*PaymentResult, error) {
	if s.current == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no order is being tracked")
	}
	pay, err := s.tracker.ApplyPayment(ctx, s.current.Lead.NationalID.String())
	if err != nil {
		return nil, err
	}
	s.current.Lead.Stage = models.ReleaseStage
	s.current.Lead.PaymentStatus = models.PaymentPaid
	s.current.Steps = pay.Steps
	s.current.CurrentStatus = pay.CurrentStatus
	return pay, nil
}

// Current returns the active lookup, or nil before the first submission.
func (s *Session) Current() *Result {
	return s.current
}

// Reset clears the active lookup.
func (s *Session) Reset() {
	s.current = nil
}
