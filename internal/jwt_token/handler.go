package jwttoken

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "leadtrack/pkg/domain-errors"
	"leadtrack/pkg/platform/httputil"
	"leadtrack/pkg/platform/middleware/admin"
	request "leadtrack/pkg/platform/middleware/request"
)

// TokenIssuer signs admin access tokens.
type TokenIssuer interface {
	GenerateAdminToken(subject string, expiresIn time.Duration) (string, error)
}

// TokenHandler exchanges the bootstrap admin secret for a short-lived bearer token.
type TokenHandler struct {
	issuer    TokenIssuer
	tokenHash []byte
	ttl       time.Duration
	logger    *slog.Logger
}

func NewTokenHandler(issuer TokenIssuer, tokenHash []byte, ttl time.Duration, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, tokenHash: tokenHash, ttl: ttl, logger: logger}
}

func (h *TokenHandler) Register(r chi.Router) {
	r.With(admin.RequireAdminToken(h.tokenHash, h.logger), request.ContentTypeJSON).
		Post("/admin/token", h.handleIssue)
}

type issueRequest struct {
	Subject string `json:"subject"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *TokenHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req issueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subject is required"))
		return
	}

	token, err := h.issuer.GenerateAdminToken(subject, h.ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue admin token",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin token issued",
		"request_id", request.GetRequestID(ctx),
		"subject", subject,
	)
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.ttl.Seconds()),
	})
}
