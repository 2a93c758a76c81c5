package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/astralpost/astralpost/pkg/observability"
)

// Provider generates one newsletter payload from a prompt. Implementations
// classify failures into the provider error taxonomy so the pipeline can
// decide how to fall through.
type Provider interface {
	Name() string
	// RatePerToken is the provider's USD cost per token, for metric estimates.
	RatePerToken() float64
	Generate(ctx context.Context, prompt Prompt) (*Newsletter, int, error)
}

// Published list prices, per token.
const (
	novaRatePerToken   = 0.000012
	scribeRatePerToken = 0.0000018
)

// newsletterPayload is the shape both providers are asked to produce.
type newsletterPayload struct {
	Subject   string `json:"subject"`
	Preheader string `json:"preheader"`
	Snippet   string `json:"snippet"`
	Sections  []struct {
		ID           string `json:"id"`
		Heading      string `json:"heading"`
		HTML         string `json:"html"`
		Text         string `json:"text"`
		CallToAction string `json:"call_to_action,omitempty"`
	} `json:"sections"`
}

func (p *newsletterPayload) toNewsletter(model string, tokens int, at time.Time) *Newsletter {
	n := &Newsletter{
		Subject:   p.Subject,
		Preheader: p.Preheader,
		Snippet:   p.Snippet,
		Meta:      Metadata{Model: model, Tokens: tokens, GeneratedAt: at},
	}
	for _, s := range p.Sections {
		n.Sections = append(n.Sections, Section(s))
	}
	return n
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrProviderTimeout
	}
	return err
}

// NovaProvider calls the nova chat API using its function-calling convention:
// the newsletter schema is passed as a tool and the model is forced to call
// it, so the payload comes back as structured arguments rather than prose.
type NovaProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *observability.Logger
}

// NewNovaProvider creates the primary generation provider.
func NewNovaProvider(baseURL, apiKey, model string, logger *observability.Logger) *NovaProvider {
	return &NovaProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.WithField("provider", "nova"),
	}
}

func (p *NovaProvider) Name() string          { return "nova" }
func (p *NovaProvider) RatePerToken() float64 { return novaRatePerToken }

var novaTool = map[string]any{
	"type": "function",
	"function": map[string]any{
		"name":        "write_newsletter",
		"description": "Produce the day's newsletter content",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"subject", "preheader", "snippet", "sections"},
			"properties": map[string]any{
				"subject":   map[string]any{"type": "string"},
				"preheader": map[string]any{"type": "string"},
				"snippet":   map[string]any{"type": "string"},
				"sections": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"id", "heading", "html", "text"},
						"properties": map[string]any{
							"id":             map[string]any{"type": "string"},
							"heading":        map[string]any{"type": "string"},
							"html":           map[string]any{"type": "string"},
							"text":           map[string]any{"type": "string"},
							"call_to_action": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	},
}

// Generate calls the chat completions endpoint and decodes the forced tool
// call into a newsletter.
func (p *NovaProvider) Generate(ctx context.Context, prompt Prompt) (*Newsletter, int, error) {
	model := prompt.Model
	if model == "" {
		model = p.model
	}

	reqBody, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": prompt.User},
		},
		"tools":       []any{novaTool},
		"tool_choice": map[string]any{"type": "function", "function": map[string]string{"name": "write_newsletter"}},
		"max_tokens":  prompt.MaxTokens,
		"temperature": prompt.Temperature,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode nova request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build nova request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, &ProviderHTTPError{Provider: p.Name(), Status: resp.StatusCode}
	}

	var out struct {
		Choices []struct {
			Message struct {
				ToolCalls []struct {
					Function struct {
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 || len(out.Choices[0].Message.ToolCalls) == 0 {
		return nil, 0, fmt.Errorf("%w: no tool call in response", ErrMalformedResponse)
	}

	var payload newsletterPayload
	if err := json.Unmarshal([]byte(out.Choices[0].Message.ToolCalls[0].Function.Arguments), &payload); err != nil {
		return nil, 0, fmt.Errorf("%w: bad tool arguments: %v", ErrMalformedResponse, err)
	}

	return payload.toNewsletter(model, out.Usage.TotalTokens, time.Now()), out.Usage.TotalTokens, nil
}

// ScribeProvider is the fallback. Its API has no function calling, so the
// prompt asks for bare JSON and the response is carved out of the prose.
type ScribeProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *observability.Logger
}

// NewScribeProvider creates the fallback generation provider.
func NewScribeProvider(baseURL, apiKey, model string, logger *observability.Logger) *ScribeProvider {
	return &ScribeProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.WithField("provider", "scribe"),
	}
}

func (p *ScribeProvider) Name() string          { return "scribe" }
func (p *ScribeProvider) RatePerToken() float64 { return scribeRatePerToken }

// Generate calls the completion endpoint with a JSON-only instruction and
// extracts the first JSON object from the returned text.
func (p *ScribeProvider) Generate(ctx context.Context, prompt Prompt) (*Newsletter, int, error) {
	model := prompt.Model
	if model == "" {
		model = p.model
	}

	instruction := prompt.User + "\n\nRespond with a single JSON object and nothing else, " +
		`shaped as {"subject","preheader","snippet","sections":[{"id","heading","html","text"}]}.`

	reqBody, err := json.Marshal(map[string]any{
		"model":       model,
		"system":      prompt.System,
		"prompt":      instruction,
		"max_tokens":  prompt.MaxTokens,
		"temperature": prompt.Temperature,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode scribe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/complete", bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build scribe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, &ProviderHTTPError{Provider: p.Name(), Status: resp.StatusCode}
	}

	var out struct {
		Output string `json:"output"`
		Usage  struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw, err := extractJSONObject(out.Output)
	if err != nil {
		return nil, 0, err
	}

	var payload newsletterPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, 0, fmt.Errorf("%w: bad JSON in output: %v", ErrMalformedResponse, err)
	}

	return payload.toNewsletter(model, out.Usage.TotalTokens, time.Now()), out.Usage.TotalTokens, nil
}

// extractJSONObject returns the outermost {...} span of s. Models that wrap
// the JSON in prose or code fences still parse.
func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in output", ErrMalformedResponse)
	}
	return s[start : end+1], nil
}
