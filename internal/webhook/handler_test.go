package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfdaybr/validapass/internal/domain"
)

func newHandlerFixture(tokens map[string]string) (*Handler, *pipelineFixture) {
	f := newPipelineFixture()
	return NewHandler(f.pipeline, tokens), f
}

func postWebhook(h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sales", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRejectsBadToken(t *testing.T) {
	tokens := map[string]string{"hubla": "secret-1"}

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no token", nil},
		{"wrong token", map[string]string{"Authorization": "nope"}},
		{"wrong bearer", map[string]string{"Authorization": "Bearer nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, f := newHandlerFixture(tokens)
			rec := postWebhook(h, hublaPaid, tt.headers)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "Unauthorized" {
				t.Errorf("body = %v", body)
			}
			// A rejected request leaves no trace.
			if len(f.audit.raws) != 0 || len(f.audit.logs) != 0 {
				t.Error("rejected request wrote audit rows")
			}
		})
	}
}

func TestHandlerAcceptsAnyTokenHeader(t *testing.T) {
	tokens := map[string]string{"hubla": "secret-1", "lastlink": "secret-2"}

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"authorization plain", map[string]string{"Authorization": "secret-1"}},
		{"authorization bearer", map[string]string{"Authorization": "Bearer secret-1"}},
		{"lowercase bearer", map[string]string{"Authorization": "bearer secret-1"}},
		{"x-hubla-token", map[string]string{"X-Hubla-Token": "secret-1"}},
		{"x-hubla-webhook-token", map[string]string{"X-Hubla-Webhook-Token": "secret-1"}},
		{"other provider token", map[string]string{"Authorization": "Bearer secret-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandlerFixture(tokens)
			rec := postWebhook(h, hublaPaid, tt.headers)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
		})
	}
}

func TestHandlerNoTokensConfiguredAllowsAll(t *testing.T) {
	h, _ := newHandlerFixture(nil)
	if rec := postWebhook(h, hublaPaid, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestHandlerAcknowledgesInvalidJSON(t *testing.T) {
	h, f := newHandlerFixture(nil)
	rec := postWebhook(h, "{not json", nil)

	// Providers retry on any non-2xx, so garbage is still acknowledged.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Status != string(domain.WebhookSkipped) {
		t.Errorf("response = %+v, want skipped", resp)
	}
	if len(f.audit.raws) != 0 {
		t.Error("unparseable body wrote a raw event")
	}
	if len(f.sender.sent) != 0 {
		t.Error("unparseable body triggered a send")
	}
}

func TestHandlerAlways200ForProcessedEvents(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status domain.WebhookStatus
	}{
		{"success", hublaPaid, domain.WebhookSuccess},
		{"skipped", `{"event":{"invoice":{"id":"t1"}}}`, domain.WebhookSkipped},
		{"skipped_unpaid", `{"event":{"user":{"email":"a@b.com"},"invoice":{"id":"t2","status":"refunded"}}}`, domain.WebhookSkippedUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandlerFixture(nil)
			rec := postWebhook(h, tt.body, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp webhookResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !resp.OK || resp.Status != string(tt.status) {
				t.Errorf("response = %+v, want status %q", resp, tt.status)
			}
		})
	}
}
