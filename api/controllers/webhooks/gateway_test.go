package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

type stubWebhookService struct {
	raw       []byte
	signature string
	eventID   string
	outcome   string
	err       error
	calls     int
}

func (s *stubWebhookService) Handle(_ context.Context, raw []byte, signature, eventID string) (string, error) {
	s.calls++
	s.raw, s.signature, s.eventID = raw, signature, eventID
	return s.outcome, s.err
}

func TestGatewayWebhookForwardsRawBody(t *testing.T) {
	svc := &stubWebhookService{outcome: "applied"}
	body := `{"event":"payment.captured","payload":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/gateway", strings.NewReader(body))
	req.Header.Set(signatureHeader, "sig-123")
	req.Header.Set(eventIDHeader, "evt_1")
	resp := httptest.NewRecorder()

	GatewayWebhook(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if string(svc.raw) != body {
		t.Fatalf("body was altered before verification: %s", svc.raw)
	}
	if svc.signature != "sig-123" || svc.eventID != "evt_1" {
		t.Fatalf("unexpected headers %q %q", svc.signature, svc.eventID)
	}
	var envelope struct {
		Data webhookAck `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Outcome != "applied" {
		t.Fatalf("unexpected outcome %q", envelope.Data.Outcome)
	}
}

func TestGatewayWebhookRequiresSignature(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/gateway", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	GatewayWebhook(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run without a signature")
	}
}

func TestGatewayWebhookSurfacesSecurityFailure(t *testing.T) {
	svc := &stubWebhookService{err: pkgerrors.New(pkgerrors.CodeSecurity, "invalid webhook signature")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/gateway", strings.NewReader(`{}`))
	req.Header.Set(signatureHeader, "forged")
	resp := httptest.NewRecorder()

	GatewayWebhook(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), string(pkgerrors.CodeSecurity)) {
		t.Fatalf("expected security code in body: %s", resp.Body.String())
	}
}

func TestGatewayWebhookRetryableFailure(t *testing.T) {
	svc := &stubWebhookService{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/gateway", strings.NewReader(`{}`))
	req.Header.Set(signatureHeader, "sig")
	resp := httptest.NewRecorder()

	GatewayWebhook(svc, nil).ServeHTTP(resp, req)

	if resp.Code < 500 {
		t.Fatalf("expected 5xx so the gateway retries, got %d", resp.Code)
	}
}
