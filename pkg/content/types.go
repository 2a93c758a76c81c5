package content

import (
	"errors"
	"fmt"
	"time"
)

// Perspective selects the editorial voice of a newsletter.
type Perspective string

const (
	PerspectiveCalm      Perspective = "calm"
	PerspectiveKnowledge Perspective = "knowledge"
	PerspectiveSuccess   Perspective = "success"
	PerspectiveEvidence  Perspective = "evidence"
)

// Perspectives lists every editorial voice, in fan-out order.
func Perspectives() []Perspective {
	return []Perspective{PerspectiveCalm, PerspectiveKnowledge, PerspectiveSuccess, PerspectiveEvidence}
}

// Valid reports whether p is a known perspective.
func (p Perspective) Valid() bool {
	switch p {
	case PerspectiveCalm, PerspectiveKnowledge, PerspectiveSuccess, PerspectiveEvidence:
		return true
	}
	return false
}

// Section is one block of a newsletter.
type Section struct {
	ID           string `json:"id"`
	Heading      string `json:"heading"`
	HTML         string `json:"html"`
	Text         string `json:"text"`
	CallToAction string `json:"call_to_action,omitempty"`
}

// Metadata records how a newsletter was produced.
type Metadata struct {
	Model       string    `json:"model"`
	Tokens      int       `json:"tokens"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Newsletter is one generated newsletter payload.
type Newsletter struct {
	Subject   string    `json:"subject"`
	Preheader string    `json:"preheader"`
	Snippet   string    `json:"snippet"`
	Sections  []Section `json:"sections"`
	Meta      Metadata  `json:"meta"`
}

// Request identifies one newsletter to generate.
type Request struct {
	Perspective Perspective
	Tier        string
	Locale      string
	Date        time.Time
}

// CacheKey returns the cache key for this request. Content is shared across
// users: everyone on the same perspective, tier, and day reads the same body.
func (r Request) CacheKey() string {
	return fmt.Sprintf("content:%s:%s:%s", r.Perspective, r.Tier, r.Date.Format("2006-01-02"))
}

// Prompt is the provider-agnostic prompt produced by the composer.
type Prompt struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider errors. The pipeline recovers all of them by falling through to
// the next provider or the static template.
var (
	ErrProviderTimeout   = errors.New("provider request timed out")
	ErrMalformedResponse = errors.New("provider response missing expected fields")
	ErrBreakerOpen       = errors.New("circuit breaker open")
)

// ProviderHTTPError is a non-2xx response from a generation provider.
type ProviderHTTPError struct {
	Provider string
	Status   int
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("provider %s returned status %d", e.Provider, e.Status)
}

// Validation errors.
var (
	ErrSchemaValidation = errors.New("payload failed schema validation")
	ErrQualityCheck     = errors.New("payload failed quality check")
)

// Outcomes recorded on generation metrics.
const (
	OutcomePrimary  = "primary"
	OutcomeFallback = "fallback"
	OutcomeStatic   = "static"
	OutcomeCached   = "cached"
)
