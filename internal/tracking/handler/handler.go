// Package handler exposes the customer tracking flow.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadtrack/internal/ratelimit"
	"leadtrack/internal/tracking"
	"leadtrack/pkg/platform/httputil"
	request "leadtrack/pkg/platform/middleware/request"
	"leadtrack/pkg/requestcontext"
)

// Service is the tracking flow.
type Service interface {
	SubmitIdentifier(ctx context.Context, raw string) (*tracking.Result, error)
	ApplyPayment(ctx context.Context, raw string) (*tracking.PaymentResult, error)
}

type Handler struct {
	tracker Service
	logger  *slog.Logger
	limiter *ratelimit.Window
}

type Option func(*Handler)

// WithLookupLimit caps lookups per client IP.
func WithLookupLimit(limiter *ratelimit.Window) Option {
	return func(h *Handler) {
		h.limiter = limiter
	}
}

func New(tracker Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{tracker: tracker, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public tracking routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/tracking", func(r chi.Router) {
		r.Use(ratelimit.PerIP(h.limiter, h.logger))
		r.Use(request.ContentTypeJSON)
		r.Post("/", h.handleSubmit)
		r.Post("/{cpf}/payment", h.handlePayment)
	})
}

type submitRequest struct {
	CPF string `json:"cpf"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.tracker.SubmitIdentifier(ctx, req.CPF)
	if err != nil {
		h.logger.InfoContext(ctx, "tracking lookup rejected",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "tracking lookup",
		"request_id", request.GetRequestID(ctx),
		"cpf", res.Lead.NationalID.Redacted(),
		"synthesized", res.Synthesized,
		"device", requestcontext.DeviceClass(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.tracker.ApplyPayment(ctx, chi.URLParam(r, "cpf"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
