package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hinoki-market/api/internal/services"
)

type stubConfirmationService struct {
	confirm func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.ConfirmPaymentResult, error)
	calls   int
}

func (s *stubConfirmationService) ConfirmPayment(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.ConfirmPaymentResult, error) {
	s.calls++
	if s.confirm == nil {
		return services.ConfirmPaymentResult{}, errors.New("unexpected ConfirmPayment call")
	}
	return s.confirm(ctx, cmd)
}

func performConfirm(t *testing.T, svc services.ConfirmationService, body string) (*httptest.ResponseRecorder, confirmPaymentResponse) {
	t.Helper()

	router := NewRouter(WithPaymentRoutes(NewPaymentHandlers(svc).Routes))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload confirmPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return rec, payload
}

func TestConfirmPaymentEndpointSuccess(t *testing.T) {
	svc := &stubConfirmationService{
		confirm: func(_ context.Context, cmd services.ConfirmPaymentCommand) (services.ConfirmPaymentResult, error) {
			if cmd.OrderID != "order-1" || cmd.Token != "token-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.ConfirmPaymentResult{OK: true, Status: services.ConfirmStatusCompleted, Final: true}, nil
		},
	}

	rec, payload := performConfirm(t, svc, `{"orderId": "order-1", "token": "token-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !payload.OK || payload.Status != "COMPLETED" || !payload.Final {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestConfirmPaymentEndpointMissingFields(t *testing.T) {
	svc := &stubConfirmationService{}

	cases := map[string]string{
		"empty body":    "",
		"no fields":     `{}`,
		"blank orderId": `{"orderId": "  ", "token": "t"}`,
		"blank token":   `{"orderId": "o", "token": ""}`,
		"invalid json":  `{"orderId":`,
		"not json":      `plain text`,
	}
	for name, body := range cases {
		rec, payload := performConfirm(t, svc, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, rec.Code)
		}
		if payload.OK || payload.Status != "MISSING" || !payload.Final {
			t.Fatalf("%s: unexpected payload %+v", name, payload)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("malformed requests must not reach the service, got %d calls", svc.calls)
	}
}

func TestConfirmPaymentEndpointServiceError(t *testing.T) {
	svc := &stubConfirmationService{
		confirm: func(context.Context, services.ConfirmPaymentCommand) (services.ConfirmPaymentResult, error) {
			return services.ConfirmPaymentResult{}, errors.New("backend exploded")
		},
	}

	rec, payload := performConfirm(t, svc, `{"orderId": "order-1", "token": "token-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even on service failure, got %d", rec.Code)
	}
	if payload.OK || payload.Status != "ERROR" || payload.Final {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestConfirmPaymentEndpointPassesThroughRawStatus(t *testing.T) {
	svc := &stubConfirmationService{
		confirm: func(context.Context, services.ConfirmPaymentCommand) (services.ConfirmPaymentResult, error) {
			return services.ConfirmPaymentResult{OK: false, Status: "AUTHORIZED", Final: false}, nil
		},
	}

	_, payload := performConfirm(t, svc, `{"orderId": "order-1", "token": "token-1"}`)
	if payload.OK || payload.Status != "AUTHORIZED" || payload.Final {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestConfirmPaymentEndpointOversizedBody(t *testing.T) {
	svc := &stubConfirmationService{}

	body := `{"orderId": "` + strings.Repeat("x", maxConfirmRequestBody) + `", "token": "t"}`
	rec, payload := performConfirm(t, svc, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload.Status != "MISSING" {
		t.Fatalf("oversized body must map to MISSING, got %+v", payload)
	}
	if svc.calls != 0 {
		t.Fatalf("oversized body must not reach the service")
	}
}

func TestConfirmPaymentEndpointPanicBecomesError(t *testing.T) {
	svc := &stubConfirmationService{
		confirm: func(context.Context, services.ConfirmPaymentCommand) (services.ConfirmPaymentResult, error) {
			panic("storage client gone")
		},
	}

	rec, payload := performConfirm(t, svc, `{"orderId": "order-1", "token": "token-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on panic, got %d", rec.Code)
	}
	if payload.OK || payload.Status != "ERROR" || payload.Final {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestConfirmPaymentEndpointMethodNotAllowed(t *testing.T) {
	router := NewRouter(WithPaymentRoutes(NewPaymentHandlers(&stubConfirmationService{}).Routes))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/confirm", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
