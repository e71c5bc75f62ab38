// Package service is the lead adapter: CRUD over the record store for one
// table layout, translating store facts into coded domain errors.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"leadtrack/internal/audit"
	"leadtrack/internal/leads/metrics"
	"leadtrack/internal/leads/models"
	"leadtrack/internal/leads/schema"
	"leadtrack/internal/recordstore"
	"leadtrack/pkg/attrs"
	id "leadtrack/pkg/domain"
	dErrors "leadtrack/pkg/domain-errors"
	"leadtrack/pkg/platform/sentinel"
	"leadtrack/pkg/requestcontext"
)

// MaxBulkEntries bounds a single BulkUpdateStage call.
const MaxBulkEntries = 500

// Cache is the read-through lead cache. Find returns sentinel.ErrNotFound on
// a miss.
type Cache interface {
	Find(ctx context.Context, nid id.NationalID) (*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
	Invalidate(ctx context.Context, nid id.NationalID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service performs lead operations against one schema variant.
type Service struct {
	store          recordstore.Store
	variant        schema.Variant
	cache          Cache
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New constructs a Service over store using the given table layout.
func New(store recordstore.Store, variant schema.Variant, opts ...Option) *Service {
	s := &Service{store: store, variant: variant}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) Variant() schema.Variant {
	return s.variant
}

// Create validates req and inserts a new lead with defaults applied.
func (s *Service) Create(ctx context.Context, req *models.CreateLeadRequest) (lead *models.Lead, err error) {
	start := time.Now()
	defer func() { s.observe("create", err, start) }()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	nid, err := req.Validate()
	if err != nil {
		return nil, err
	}

	if _, err := s.store.SelectOne(ctx, s.variant.Table(), s.variant.KeyQuery(nid)); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "a lead with this cpf already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.translate(ctx, "create", nid, err)
	}

	now := requestcontext.Now(ctx)
	candidate := req.ToLead(nid)
	if s.variant == schema.VariantNormalized {
		candidate.ID = id.NewLeadID()
	}
	candidate.ApplyDefaults(s.variant.InitialStage(), now)

	row, err := s.store.Insert(ctx, s.variant.Table(), schema.FromLead(s.variant, candidate).Row())
	if err != nil {
		return nil, s.translate(ctx, "create", nid, err)
	}
	lead, err = schema.DecodeLead(s.variant, row)
	if err != nil {
		return nil, s.translate(ctx, "create", nid, err)
	}

	s.remember(ctx, lead)
	s.logAudit(ctx, string(audit.EventLeadCreated), "cpf", nid.Redacted())
	if lossy := s.variant.Unstorable(candidate); len(lossy) > 0 {
		s.reportUnstored(ctx, nid, lossy)
	}
	return lead, nil
}

// ReadByIdentifier returns the lead stored under raw, or a not_found error.
func (s *Service) ReadByIdentifier(ctx context.Context, raw string) (lead *models.Lead, err error) {
	start := time.Now()
	defer func() { s.observe("read", err, start) }()

	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}
	if cached := s.cached(ctx, nid); cached != nil {
		return cached, nil
	}

	row, err := s.store.SelectOne(ctx, s.variant.Table(), s.variant.KeyQuery(nid))
	if err != nil {
		return nil, s.translate(ctx, "read", nid, err)
	}
	lead, err = schema.DecodeLead(s.variant, row)
	if err != nil {
		return nil, s.translate(ctx, "read", nid, err)
	}
	s.remember(ctx, lead)
	return lead, nil
}

// ListAll returns the leads matching filter in the layout's natural order.
// Rows that decode to neither layout are skipped and logged.
func (s *Service) ListAll(ctx context.Context, filter models.ListFilter) (leads []*models.Lead, err error) {
	start := time.Now()
	defer func() { s.observe("list", err, start) }()

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.store.Select(ctx, s.variant.Table(), s.variant.ListQuery(filter))
	if err != nil {
		return nil, s.translate(ctx, "list", "", err)
	}

	leads = make([]*models.Lead, 0, len(rows))
	for _, row := range rows {
		lead, err := schema.DecodeLead(s.variant, row)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable lead row", "error", err, "variant", s.variant)
			continue
		}
		if filter.Stage != 0 && !s.variant.PersistsProgress() && lead.Stage != filter.Stage {
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// UpdateStage moves the lead to stage. The legacy layout cannot store it: the
// lead must still exist, and the result reports Applied=false.
func (s *Service) UpdateStage(ctx context.Context, raw string, stage int) (result *models.MutationResult, err error) {
	start := time.Now()
	defer func() { s.observe("update_stage", err, start) }()

	if err := models.ValidateStage(stage); err != nil {
		return nil, err
	}
	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}
	patch := s.variant.StagePatch(stage, requestcontext.Now(ctx))
	if patch == nil {
		return s.skipUpdate(ctx, nid, "stage")
	}
	return s.applyPatch(ctx, "update_stage", nid, patch, audit.EventStageUpdated)
}

// UpdatePaymentStatus sets the payment status with the same legacy handling
// as UpdateStage.
func (s *Service) UpdatePaymentStatus(ctx context.Context, raw string, status models.PaymentStatus) (result *models.MutationResult, err error) {
	start := time.Now()
	defer func() { s.observe("update_payment", err, start) }()

	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "payment status must be pending or paid")
	}
	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}
	patch := s.variant.PaymentPatch(status, requestcontext.Now(ctx))
	if patch == nil {
		return s.skipUpdate(ctx, nid, "payment_status")
	}
	return s.applyPatch(ctx, "update_payment", nid, patch, audit.EventPaymentStatusUpdated)
}

// MarkPaid records payment and releases the order in one write.
func (s *Service) MarkPaid(ctx context.Context, raw string) (result *models.MutationResult, err error) {
	start := time.Now()
	defer func() { s.observe("mark_paid", err, start) }()

	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}
	patch := s.variant.PaidPatch(requestcontext.Now(ctx))
	if patch == nil {
		return s.skipUpdate(ctx, nid, "payment_status")
	}
	return s.applyPatch(ctx, "mark_paid", nid, patch, audit.EventLeadMarkedPaid)
}

// Delete removes the lead and returns the deleted record.
func (s *Service) Delete(ctx context.Context, raw string) (lead *models.Lead, err error) {
	start := time.Now()
	defer func() { s.observe("delete", err, start) }()

	nid, err := id.ParseNationalID(raw)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Delete(ctx, s.variant.Table(), s.variant.KeyQuery(nid))
	if err != nil {
		return nil, s.translate(ctx, "delete", nid, err)
	}
	s.forget(ctx, nid)
	if len(rows) == 0 {
		return nil, s.translate(ctx, "delete", nid, sentinel.ErrNotFound)
	}
	lead, err = schema.DecodeLead(s.variant, rows[0])
	if err != nil {
		return nil, s.translate(ctx, "delete", nid, err)
	}
	s.logAudit(ctx, string(audit.EventLeadDeleted), "cpf", nid.Redacted())
	return lead, nil
}

// BulkUpdateStage applies each entry in order. Entry failures are collected
// in the result and never abort the batch.
func (s *Service) BulkUpdateStage(ctx context.Context, entries []models.StageUpdate) (*models.BulkResult, error) {
	if len(entries) > MaxBulkEntries {
		return nil, dErrors.New(dErrors.CodeValidation, "too many entries in one bulk update")
	}
	result := &models.BulkResult{Results: make([]models.BulkItemResult, 0, len(entries))}
	for _, entry := range entries {
		item := models.BulkItemResult{NationalID: id.NormalizeNationalID(entry.NationalID)}
		res, err := s.UpdateStage(ctx, entry.NationalID, entry.Stage)
		if err != nil {
			result.Failures++
			item.Error = dErrors.MessageOf(err)
			item.Code = string(dErrors.CodeOf(err))
		} else {
			result.Successes++
			item.Success = true
			item.Applied = res.Applied
			item.Warning = res.Warning
		}
		result.Results = append(result.Results, item)
	}
	if result.Failures > 0 {
		s.logger.WarnContext(ctx, "bulk stage update had failures",
			"successes", result.Successes,
			"failures", result.Failures,
		)
	}
	return result, nil
}

// Ping reads one row from the variant's table.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx, s.variant.Table()); err != nil {
		return s.translate(ctx, "ping", "", err)
	}
	return nil
}

func (s *Service) applyPatch(ctx context.Context, op string, nid id.NationalID, patch recordstore.Row, event audit.EventAction) (*models.MutationResult, error) {
	rows, err := s.store.Update(ctx, s.variant.Table(), s.variant.KeyQuery(nid), patch)
	if err != nil {
		return nil, s.translate(ctx, op, nid, err)
	}
	s.forget(ctx, nid)
	if len(rows) == 0 {
		return nil, s.translate(ctx, op, nid, sentinel.ErrNotFound)
	}
	lead, err := schema.DecodeLead(s.variant, rows[0])
	if err != nil {
		return nil, s.translate(ctx, op, nid, err)
	}
	s.logAudit(ctx, string(event), "cpf", nid.Redacted())
	return &models.MutationResult{Lead: lead, Applied: true}, nil
}

// skipUpdate handles a write the layout has no column for.
func (s *Service) skipUpdate(ctx context.Context, nid id.NationalID, field string) (*models.MutationResult, error) {
	row, err := s.store.SelectOne(ctx, s.variant.Table(), s.variant.KeyQuery(nid))
	if err != nil {
		return nil, s.translate(ctx, "update_"+field, nid, err)
	}
	lead, err := schema.DecodeLead(s.variant, row)
	if err != nil {
		return nil, s.translate(ctx, "update_"+field, nid, err)
	}

	warning := "the " + s.variant.String() + " table has no " + field + " column; update not persisted"
	s.logger.WarnContext(ctx, "lead update not persisted",
		"cpf", nid.Redacted(),
		"field", field,
		"variant", s.variant,
	)
	if s.metrics != nil {
		s.metrics.IncrementSkippedUpdate(field)
	}
	s.logAudit(ctx, string(audit.EventUpdateSkipped), "cpf", nid.Redacted(), "reason", warning)
	return &models.MutationResult{Lead: lead, Applied: false, Warning: warning}, nil
}

// reportUnstored flags create fields the layout flattened or dropped.
func (s *Service) reportUnstored(ctx context.Context, nid id.NationalID, fields []string) {
	warning := "the " + s.variant.String() + " table cannot store " + strings.Join(fields, ", ") + " as given"
	s.logger.WarnContext(ctx, "lead fields not stored as given",
		"cpf", nid.Redacted(),
		"fields", fields,
		"variant", s.variant,
	)
	for _, field := range fields {
		if s.metrics != nil {
			s.metrics.IncrementSkippedUpdate(field)
		}
	}
	s.logAudit(ctx, string(audit.EventUpdateSkipped), "cpf", nid.Redacted(), "reason", warning)
}

// translate maps store failures onto domain error codes.
func (s *Service) translate(ctx context.Context, op string, nid id.NationalID, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "lead not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "a lead with this cpf already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "record store timed out")
	}

	args := []any{"operation", op, "variant", s.variant, "error", err}
	if nid != "" {
		args = append(args, "cpf", nid.Redacted())
	}
	if se, ok := recordstore.AsError(err); ok {
		args = append(args, se.LogAttrs()...)
	}
	s.logger.ErrorContext(ctx, "record store operation failed", args...)

	if errors.Is(err, sentinel.ErrAmbiguous) {
		return dErrors.Wrap(err, dErrors.CodeStore, "stored record does not match the configured layout")
	}
	return dErrors.Wrap(err, dErrors.CodeStore, "record store error")
}

func (s *Service) cached(ctx context.Context, nid id.NationalID) *models.Lead {
	if s.cache == nil {
		return nil
	}
	lead, err := s.cache.Find(ctx, nid)
	switch {
	case err == nil:
		s.countCache("hit")
		return lead
	case errors.Is(err, sentinel.ErrNotFound):
		s.countCache("miss")
	default:
		s.countCache("error")
		s.logger.WarnContext(ctx, "lead cache read failed", "error", err)
	}
	return nil
}

func (s *Service) remember(ctx context.Context, lead *models.Lead) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, lead); err != nil {
		s.logger.WarnContext(ctx, "lead cache write failed", "error", err)
	}
}

func (s *Service) forget(ctx context.Context, nid id.NationalID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, nid); err != nil {
		s.logger.WarnContext(ctx, "lead cache invalidation failed", "error", err)
	}
}

func (s *Service) countCache(result string) {
	if s.metrics != nil {
		s.metrics.IncrementCacheLookup(result)
	}
}

func (s *Service) observe(op string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveOperation(op, outcome, start)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "variant", s.variant, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    event,
		Subject:   attrs.ExtractString(attributes, "cpf"),
		Variant:   s.variant.String(),
		ActorID:   requestcontext.Actor(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Reason:    attrs.ExtractString(attributes, "reason"),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}
