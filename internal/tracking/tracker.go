package tracking

import (
	"context"
	"log/slog"

	"leadtrack/internal/audit"
	"leadtrack/internal/leads/metrics"
	"leadtrack/internal/leads/models"
	id "leadtrack/pkg/domain"
	dErrors "leadtrack/pkg/domain-errors"
	"leadtrack/pkg/requestcontext"
)

// Lookup sources reported to metrics.
const (
	sourceStore               = "store"
	sourceSynthesizedNotFound = "synthesized_not_found"
	sourceSynthesizedError    = "synthesized_error"
)

// LeadService is the slice of the lead adapter the tracking flow needs.
type LeadService interface {
	ReadByIdentifier(ctx context.Context, raw string) (*models.Lead, error)
	MarkPaid(ctx context.Context, raw string) (*models.MutationResult, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Result is what a customer sees after submitting an identifier.
type Result struct {
	Lead          *models.Lead `json:"lead"`
	FormattedCPF  string       `json:"formatted_cpf"`
	Steps         []Step       `json:"steps"`
	CurrentStatus string       `json:"current_status"`
	Synthesized   bool         `json:"synthesized"`
}

// PaymentResult is the timeline after the customs fee is paid. Persisted is
// false when the store did not record the payment.
type PaymentResult struct {
	Steps         []Step `json:"steps"`
	CurrentStatus string `json:"current_status"`
	Persisted     bool   `json:"persisted"`
}

// Tracker runs the customer lookup and payment flow.
type Tracker struct {
	leads          LeadService
	deriver        *Deriver
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(t *Tracker) {
		t.auditPublisher = publisher
	}
}

func WithDeriver(d *Deriver) Option {
	return func(t *Tracker) {
		t.deriver = d
	}
}

func NewTracker(leads LeadService, opts ...Option) *Tracker {
	t := &Tracker{leads: leads}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.deriver == nil {
		t.deriver = NewDeriver()
	}
	return t
}

// SubmitIdentifier validates raw, looks the lead up and derives its timeline.
// An unknown identifier, or a store failure, yields a synthesized lead at
// customs so the customer always gets a timeline. Only an invalid
// identifier is an error.
func (t *Tracker) SubmitIdentifier(ctx context.Context, raw string) (*Result, error) {
	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}

	lead, err := t.leads.ReadByIdentifier(ctx, nid.String())
	synthesized := false
	switch {
	case err == nil:
		t.countLookup(sourceStore)
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		t.logger.InfoContext(ctx, "lead not found, showing synthesized timeline", "cpf", nid.Redacted())
		t.countLookup(sourceSynthesizedNotFound)
		lead, synthesized = SynthesizeLead(nid, requestcontext.Now(ctx)), true
	default:
		t.logger.ErrorContext(ctx, "lead lookup failed, showing synthesized timeline",
			"cpf", nid.Redacted(),
			"error", err,
		)
		t.countLookup(sourceSynthesizedError)
		t.emitFallback(ctx, nid, dErrors.MessageOf(err))
		lead, synthesized = SynthesizeLead(nid, requestcontext.Now(ctx)), true
	}

	paid := lead.IsPaid()
	return &Result{
		Lead:          lead,
		FormattedCPF:  nid.Formatted(),
		Steps:         t.deriver.Derive(lead.Stage, paid),
		CurrentStatus: StatusLabel(paid),
		Synthesized:   synthesized,
	}, nil
}

// ApplyPayment records the customs fee as paid and returns the released
// timeline. A store failure is logged and the release is shown anyway.
func (t *Tracker) ApplyPayment(ctx context.Context, raw string) (*PaymentResult, error) {
	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}

	persisted := false
	res, err := t.leads.MarkPaid(ctx, nid.String())
	switch {
	case err != nil:
		t.logger.WarnContext(ctx, "payment not recorded in store",
			"cpf", nid.Redacted(),
			"error", err,
		)
	case !res.Applied:
		t.logger.WarnContext(ctx, "payment accepted but not persisted",
			"cpf", nid.Redacted(),
			"reason", res.Warning,
		)
	default:
		persisted = true
	}

	return &PaymentResult{
		Steps:         t.deriver.Derive(models.ReleaseStage, true),
		CurrentStatus: StatusLabel(true),
		Persisted:     persisted,
	}, nil
}

func (t *Tracker) countLookup(source string) {
	if t.metrics != nil {
		t.metrics.IncrementTrackingLookup(source)
	}
}

func (t *Tracker) emitFallback(ctx context.Context, nid id.NationalID, reason string) {
	if t.auditPublisher == nil {
		return
	}
	err := t.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    string(audit.EventTrackingFallback),
		Subject:   nid.Redacted(),
		RequestID: requestcontext.RequestID(ctx),
		Reason:    reason,
	})
	if err != nil {
		t.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
	}
}
