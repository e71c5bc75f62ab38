// Package handler exposes the lead adapter on the admin HTTP routes.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leadtrack/internal/leads/models"
	dErrors "leadtrack/pkg/domain-errors"
	"leadtrack/pkg/platform/httputil"
	authmw "leadtrack/pkg/platform/middleware/auth"
	request "leadtrack/pkg/platform/middleware/request"
)

// Service is the lead adapter as seen by the admin routes.
type Service interface {
	Create(ctx context.Context, req *models.CreateLeadRequest) (*models.Lead, error)
	ReadByIdentifier(ctx context.Context, raw string) (*models.Lead, error)
	ListAll(ctx context.Context, filter models.ListFilter) ([]*models.Lead, error)
	UpdateStage(ctx context.Context, raw string, stage int) (*models.MutationResult, error)
	UpdatePaymentStatus(ctx context.Context, raw string, status models.PaymentStatus) (*models.MutationResult, error)
	Delete(ctx context.Context, raw string) (*models.Lead, error)
	BulkUpdateStage(ctx context.Context, entries []models.StageUpdate) (*models.BulkResult, error)
}

// Handler serves /admin/leads.
type Handler struct {
	leads        Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
}

func New(leads Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		leads:        leads,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the admin lead routes behind bearer authentication.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/leads", func(r chi.Router) {
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Use(request.ContentTypeJSON)

		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/bulk-stage", h.handleBulkStage)
		r.Get("/{cpf}", h.handleGet)
		r.Delete("/{cpf}", h.handleDelete)
		r.Put("/{cpf}/stage", h.handleUpdateStage)
		r.Put("/{cpf}/payment", h.handleUpdatePayment)
	})
}

type stageRequest struct {
	Stage int `json:"stage"`
}

type paymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status"`
}

type bulkStageRequest struct {
	Entries []models.StageUpdate `json:"entries"`
}

type listResponse struct {
	Leads []*models.Lead `json:"leads"`
	Count int            `json:"count"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	leads, err := h.leads.ListAll(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list leads", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Leads: leads, Count: len(leads)})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLeadRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	lead, err := h.leads.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "create lead", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lead)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.ReadByIdentifier(r.Context(), chi.URLParam(r, "cpf"))
	if err != nil {
		h.fail(w, r, "read lead", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.Delete(r.Context(), chi.URLParam(r, "cpf"))
	if err != nil {
		h.fail(w, r, "delete lead", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.leads.UpdateStage(r.Context(), chi.URLParam(r, "cpf"), req.Stage)
	if err != nil {
		h.fail(w, r, "update stage", err)
		return
	}
	writeMutation(w, res)
}

func (h *Handler) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.leads.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "cpf"), req.PaymentStatus)
	if err != nil {
		h.fail(w, r, "update payment status", err)
		return
	}
	writeMutation(w, res)
}

func (h *Handler) handleBulkStage(w http.ResponseWriter, r *http.Request) {
	var req bulkStageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.leads.BulkUpdateStage(r.Context(), req.Entries)
	if err != nil {
		h.fail(w, r, "bulk stage update", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// writeMutation flags an accepted but unpersisted write with a Warning header.
func writeMutation(w http.ResponseWriter, res *models.MutationResult) {
	if !res.Applied && res.Warning != "" {
		w.Header().Set("Warning", `299 leadtrack "`+res.Warning+`"`)
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()
	switch dErrors.CodeOf(err) {
	case dErrors.CodeStore, dErrors.CodeTimeout, dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, "failed to "+action,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	default:
		h.logger.WarnContext(ctx, "rejected "+action,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

// parseListFilter reads search, from, to and stage. Dates are RFC 3339 or
// YYYY-MM-DD; a bare "to" date covers the whole day.
func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	filter := models.ListFilter{Search: strings.TrimSpace(q.Get("search"))}

	if raw := q.Get("stage"); raw != "" {
		stage, err := strconv.Atoi(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "stage must be a number")
		}
		filter.Stage = stage
	}
	if raw := q.Get("from"); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.CreatedFrom = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.CreatedTo = &to
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, dErrors.New(dErrors.CodeValidation, "dates must be RFC 3339 or YYYY-MM-DD")
}
