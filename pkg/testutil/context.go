package testutil

import (
	"errors"
	"net/http"
	"time"

	authmw "leadtrack/pkg/platform/middleware/auth"
	"leadtrack/pkg/requestcontext"
)

// AdminToken is the bearer token StaticValidator accepts.
const AdminToken = "test-admin-token"

// StaticValidator accepts AdminToken as an admin subject and rejects the rest.
type StaticValidator struct {
	Subject string
}

func (v StaticValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	if token != AdminToken {
		return nil, errors.New("invalid token")
	}
	subject := v.Subject
	if subject == "" {
		subject = "admin@example.com"
	}
	return &authmw.JWTClaims{Subject: subject, Role: authmw.RoleAdmin}, nil
}

// WithAdminAuth sets the bearer header StaticValidator accepts.
func WithAdminAuth(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+AdminToken)
	return req
}

// WithActor injects the authenticated subject, as the auth middleware would.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
