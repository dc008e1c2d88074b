package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:    serverURL,
		APIKey:     "key-1",
		APISecret:  "secret-1",
		MerchantID: "merchant-1",
		Timeout:    2 * time.Second,
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGetPaymentDetailsObjectShape(t *testing.T) {
	var calls atomic.Int64
	var gotPath, gotAuth, gotMerchant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotMerchant = r.Header.Get("X-ASSUME-MERCHANT")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"resultInfo": {"code": "SUCCESS", "message": "Success", "codeId": "08100001"},
			"data": {"status": "COMPLETED", "merchantPaymentId": "m-1", "acceptedAt": 1700000000}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	body, err := client.GetPaymentDetails(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get payment details: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one provider call, got %d", calls.Load())
	}
	if gotPath != "/v2/codes/payments/m-1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "hmac OPA-Auth:key-1:") {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotMerchant != "merchant-1" {
		t.Fatalf("unexpected merchant header %q", gotMerchant)
	}

	if body.ResultInfo.Code != "SUCCESS" {
		t.Fatalf("unexpected result code %q", body.ResultInfo.Code)
	}
	if len(body.Data) != 1 || body.Data[0].Status != "COMPLETED" || body.Data[0].MerchantPaymentID != "m-1" {
		t.Fatalf("object data not folded into slice: %+v", body.Data)
	}
}

func TestGetPaymentDetailsArrayShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"resultInfo": {"code": "SUCCESS"},
			"data": [{"status": "FAILED"}, {"status": "COMPLETED"}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	body, err := client.GetPaymentDetails(context.Background(), "m-2")
	if err != nil {
		t.Fatalf("get payment details: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("expected both attempts preserved, got %+v", body.Data)
	}
	if body.Data[0].Status != "FAILED" {
		t.Fatalf("array order must be preserved, got %+v", body.Data)
	}
}

func TestGetPaymentDetailsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"resultInfo": {"code": "DYNAMIC_QR_PAYMENT_NOT_FOUND", "message": "not found"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	body, err := client.GetPaymentDetails(context.Background(), "m-3")
	if err != nil {
		t.Fatalf("gateway-reported failure must not be a client error: %v", err)
	}
	if body.ResultInfo.Code != "DYNAMIC_QR_PAYMENT_NOT_FOUND" {
		t.Fatalf("unexpected result code %q", body.ResultInfo.Code)
	}
	if body.Data != nil {
		t.Fatalf("expected nil data, got %+v", body.Data)
	}
}

func TestGetPaymentDetailsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetPaymentDetails(context.Background(), "m-4")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGetPaymentDetailsGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetPaymentDetails(context.Background(), "m-5")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGetPaymentDetailsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetPaymentDetails(context.Background(), "m-6")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestGetPaymentDetailsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(ClientConfig{
		BaseURL:   server.URL,
		APIKey:    "key-1",
		APISecret: "secret-1",
		Timeout:   50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetPaymentDetails(context.Background(), "m-7")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable on timeout, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{APIKey: "k", APISecret: "s"}); err == nil {
		t.Fatalf("expected error for missing base url")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "https://example.com", APIKey: "k"}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "not a url", APIKey: "k", APISecret: "s"}); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}
