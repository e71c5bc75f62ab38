package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"leadtrack/internal/leads/models"
	"leadtrack/internal/ratelimit"
	"leadtrack/internal/tracking"
	"leadtrack/internal/tracking/handler/mocks"
	dErrors "leadtrack/pkg/domain-errors"
	"leadtrack/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, svc
}

func TestSubmit(t *testing.T) {
	testutil.Given(t, "a known customer", func(t *testing.T) {
		r, svc := newTestRouter(t)
		svc.EXPECT().SubmitIdentifier(gomock.Any(), "123.456.789-01").Return(&tracking.Result{
			Lead:          &models.Lead{FullName: "Maria Silva", NationalID: "12345678901"},
			FormattedCPF:  "123.456.789-01",
			Steps:         tracking.NewDeriver().Derive(5, false),
			CurrentStatus: tracking.StatusAwaitingRelease,
		}, nil)

		testutil.When(t, "they submit their cpf", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/tracking", map[string]string{"cpf": "123.456.789-01"}))

			testutil.Then(t, "the timeline is returned", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				res := testutil.UnmarshalResponse[tracking.Result](t, rr)
				if len(res.Steps) != 11 {
					t.Fatalf("expected 11 steps, got %d", len(res.Steps))
				}
				if res.FormattedCPF != "123.456.789-01" {
					t.Fatalf("unexpected formatted cpf %q", res.FormattedCPF)
				}
			})
		})
	})

	testutil.Given(t, "a malformed cpf", func(t *testing.T) {
		r, svc := newTestRouter(t)
		svc.EXPECT().SubmitIdentifier(gomock.Any(), "123").
			Return(nil, dErrors.New(dErrors.CodeValidation, "cpf must have 11 digits and not repeat a single digit"))

		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/tracking", map[string]string{"cpf": "123"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	testutil.Given(t, "a form post", func(t *testing.T) {
		r, _ := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/api/tracking", strings.NewReader("cpf=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusUnsupportedMediaType)
	})

	testutil.Given(t, "a body that is not json", func(t *testing.T) {
		r, _ := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/api/tracking", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rr := testutil.DoRequest(r, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestLookupLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithLookupLimit(ratelimit.NewWindow(1, time.Minute)),
	).Register(r)

	svc.EXPECT().SubmitIdentifier(gomock.Any(), "12345678901").Return(&tracking.Result{
		Lead:          &models.Lead{NationalID: "12345678901"},
		Steps:         tracking.NewDeriver().Derive(11, false),
		CurrentStatus: tracking.StatusAwaitingRelease,
	}, nil).Times(1)

	body := map[string]string{"cpf": "12345678901"}
	first := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/tracking", body))
	testutil.AssertStatus(t, first, http.StatusOK)

	second := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/tracking", body))
	testutil.AssertStatusAndError(t, second, http.StatusTooManyRequests, "rate_limit_exceeded")
}

func TestPayment(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.EXPECT().ApplyPayment(gomock.Any(), "12345678901").Return(&tracking.PaymentResult{
		Steps:         tracking.NewDeriver().Derive(12, true),
		CurrentStatus: tracking.StatusReleased,
		Persisted:     true,
	}, nil)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodPost, "/api/tracking/12345678901/payment"))

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "current_status", "Pedido liberado")
}
