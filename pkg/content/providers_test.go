package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralpost/astralpost/pkg/observability"
)

func providerLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func validPayloadJSON() string {
	data, _ := json.Marshal(validNewsletter())
	return string(data)
}

func testPrompt() Prompt {
	return Prompt{System: "sys", User: "user", MaxTokens: 1500, Temperature: 0.8}
}

func TestNovaProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer nova-key", r.Header.Get("Authorization"))

		var req struct {
			Model      string            `json:"model"`
			Tools      []json.RawMessage `json:"tools"`
			ToolChoice json.RawMessage   `json:"tool_choice"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nova-large", req.Model)
		assert.Len(t, req.Tools, 1)

		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"tool_calls": []map[string]any{{
						"function": map[string]any{"arguments": validPayloadJSON()},
					}},
				},
			}},
			"usage": map[string]any{"total_tokens": 812},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewNovaProvider(srv.URL, "nova-key", "nova-large", providerLogger())

	n, tokens, err := p.Generate(context.Background(), testPrompt())
	require.NoError(t, err)
	assert.Equal(t, 812, tokens)
	assert.Equal(t, "Your Evening Sky Briefing", n.Subject)
	assert.Equal(t, 812, n.Meta.Tokens)
	require.Len(t, n.Sections, 1)
	assert.Equal(t, "Look west after sunset", n.Sections[0].Heading)
}

func TestNovaProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewNovaProvider(srv.URL, "k", "m", providerLogger())
	_, _, err := p.Generate(context.Background(), testPrompt())

	var httpErr *ProviderHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Equal(t, "nova", httpErr.Provider)
}

func TestNovaProviderMalformed(t *testing.T) {
	t.Run("no tool call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{}}],"usage":{"total_tokens":10}}`))
		}))
		defer srv.Close()

		p := NewNovaProvider(srv.URL, "k", "m", providerLogger())
		_, _, err := p.Generate(context.Background(), testPrompt())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("bad tool arguments", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{"arguments":"not json"}}]}}]}`))
		}))
		defer srv.Close()

		p := NewNovaProvider(srv.URL, "k", "m", providerLogger())
		_, _, err := p.Generate(context.Background(), testPrompt())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestNovaProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewNovaProvider(srv.URL, "k", "m", providerLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := p.Generate(ctx, testPrompt())
	assert.ErrorIs(t, err, ErrProviderTimeout)
}

func TestScribeProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/complete", r.URL.Path)

		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Prompt, "single JSON object")

		// The model wraps the JSON in prose, as they do.
		out := "Sure! Here is today's newsletter:\n" + validPayloadJSON() + "\nHope that helps."
		json.NewEncoder(w).Encode(map[string]any{
			"output": out,
			"usage":  map[string]any{"total_tokens": 640},
		})
	}))
	defer srv.Close()

	p := NewScribeProvider(srv.URL, "scribe-key", "scribe-chat", providerLogger())

	n, tokens, err := p.Generate(context.Background(), testPrompt())
	require.NoError(t, err)
	assert.Equal(t, 640, tokens)
	assert.Equal(t, "Your Evening Sky Briefing", n.Subject)
}

func TestScribeProviderNoJSONInOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"output": "I cannot help with that."})
	}))
	defer srv.Close()

	p := NewScribeProvider(srv.URL, "k", "m", providerLogger())
	_, _, err := p.Generate(context.Background(), testPrompt())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractJSONObject(t *testing.T) {
	raw, err := extractJSONObject("prose {\"a\":{\"b\":1}} trailing")
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"b":1}}`, raw)

	_, err = extractJSONObject("no braces here")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
