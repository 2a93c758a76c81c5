package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/observability"
)

// Sender delivers one email. Implemented by APISender; tests use fakes.
type Sender interface {
	Send(ctx context.Context, to, subject, text string) error
}

// APISender talks to the transactional mail HTTP API.
type APISender struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	logger  *observability.Logger
}

// NewAPISender creates the default sender from mailer configuration.
func NewAPISender(cfg config.MailerConfig, logger *observability.Logger) *APISender {
	return &APISender{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		from:    cfg.FromAddress,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.WithField("component", "mailer.sender"),
	}
}

// Send posts the email to the /emails endpoint.
func (s *APISender) Send(ctx context.Context, to, subject, text string) error {
	body, err := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      []string{to},
		"subject": subject,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}
	return nil
}
