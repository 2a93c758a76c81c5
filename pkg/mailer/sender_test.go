package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/observability"
)

func TestAPISenderSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer key789", r.Header.Get("Authorization"))

		var body struct {
			From    string   `json:"from"`
			To      []string `json:"to"`
			Subject string   `json:"subject"`
			Text    string   `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Astral Post <hello@astralpost.app>", body.From)
		assert.Equal(t, []string{"u@example.com"}, body.To)
		assert.Equal(t, "Your trial ends tomorrow", body.Subject)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewAPISender(config.MailerConfig{
		BaseURL:     srv.URL,
		APIKey:      "key789",
		FromAddress: "Astral Post <hello@astralpost.app>",
	}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	err := s.Send(context.Background(), "u@example.com", "Your trial ends tomorrow", "body text")
	assert.NoError(t, err)
}

func TestAPISenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewAPISender(config.MailerConfig{BaseURL: srv.URL},
		observability.NewLogger(observability.ErrorLevel, io.Discard))

	err := s.Send(context.Background(), "u@example.com", "s", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
}
