package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendSend(t *testing.T) {
	var got resendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewResendSender("re_key", srv.URL, time.Second)
	err := s.Send(context.Background(), &Message{
		From:    "Wolf Day Brazil <noreply@wolfdaybr.com.br>",
		To:      "maria@example.com",
		Subject: "subject",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, []string{"maria@example.com"}, got.To)
	assert.Equal(t, "<p>hi</p>", got.HTML)
}

func TestResendSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid to address"}`))
	}))
	defer srv.Close()

	s := NewResendSender("re_key", srv.URL, time.Second)
	err := s.Send(context.Background(), &Message{To: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "invalid to address")
}

func TestResendSendNotConfigured(t *testing.T) {
	s := NewResendSender("", "", time.Second)
	err := s.Send(context.Background(), &Message{To: "a@b.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
