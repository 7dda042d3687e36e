package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/wolfdaybr/validapass/internal/domain"
	"github.com/wolfdaybr/validapass/internal/pkg/httputil"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
)

// tokenHeaders are checked in order for the provider token. Hubla and
// Lastlink send Authorization, older Hubla configurations send the
// x-hubla-* variants.
var tokenHeaders = []string{"Authorization", "X-Hubla-Token", "X-Hubla-Webhook-Token"}

// Handler is the HTTP entry point for provider sale webhooks.
type Handler struct {
	pipeline *Pipeline
	tokens   map[string]string
}

func NewHandler(pipeline *Pipeline, tokens map[string]string) *Handler {
	return &Handler{pipeline: pipeline, tokens: tokens}
}

type webhookResponse struct {
	OK            bool   `json:"ok"`
	Status        string `json:"status"`
	ParticipantID string `json:"participant_id,omitempty"`
	EmailSent     bool   `json:"email_sent"`
}

// ServeHTTP authenticates, parses, and processes one webhook delivery.
// Rejected requests leave no trace in the database. Authenticated requests
// always answer 200 so providers do not retry events we already audited.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		logger.Warn("webhook rejected", "remote", r.RemoteAddr)
		httputil.Unauthorized(w, "Unauthorized")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		logger.Warn("webhook body unreadable", "error", err.Error())
		httputil.OK(w, webhookResponse{OK: true, Status: string(domain.WebhookSkipped)})
		return
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Providers retry-storm on any non-2xx, so even garbage is
		// acknowledged. The raw text goes to the log for forensics.
		logger.Warn("webhook payload unparseable",
			"error", err.Error(), "body", truncate(string(raw), 512))
		httputil.OK(w, webhookResponse{OK: true, Status: string(domain.WebhookSkipped)})
		return
	}

	origin := DetectOrigin(payload)
	outcome := h.pipeline.Process(r.Context(), origin, raw, payload)

	httputil.OK(w, webhookResponse{
		OK:            true,
		Status:        string(outcome.Status),
		ParticipantID: outcome.ParticipantID,
		EmailSent:     outcome.EmailSent,
	})
}

// authorized accepts any configured provider token, sent through any of the
// known headers, with or without a Bearer prefix. With no tokens configured
// authentication is disabled.
func (h *Handler) authorized(r *http.Request) bool {
	if len(h.tokens) == 0 {
		return true
	}
	for _, header := range tokenHeaders {
		got := strings.TrimSpace(r.Header.Get(header))
		if len(got) >= 7 && strings.EqualFold(got[:7], "Bearer ") {
			got = strings.TrimSpace(got[7:])
		}
		if got == "" {
			continue
		}
		for _, want := range h.tokens {
			if want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
				return true
			}
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
