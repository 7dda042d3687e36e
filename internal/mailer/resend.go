package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfdaybr/validapass/internal/pkg/httpretry"
)

// ResendSender delivers through the Resend HTTP API.
type ResendSender struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewResendSender creates a Resend sender with a plain one-shot HTTP client.
// Use this in the webhook dispatch gateway, where the contract is a single
// inline attempt.
func NewResendSender(apiKey, baseURL string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResendSender{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithRetry swaps in a retrying HTTP client. The queue processor uses this
// so a transient 429/5xx doesn't consume a whole queue-level retry cycle.
func (s *ResendSender) WithRetry(maxRetries int) *ResendSender {
	return &ResendSender{
		apiKey:  s.apiKey,
		baseURL: s.baseURL,
		client:  httpretry.NewRetryClient(nil, maxRetries),
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts the message to /emails.
func (s *ResendSender) Send(ctx context.Context, msg *Message) error {
	if s.apiKey == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("encode resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
