package content

import (
	"fmt"
	"strings"
)

// ProfanityFilter masks unacceptable words. The default is a small wordlist;
// deployments can swap in something smarter.
type ProfanityFilter interface {
	Filter(text string) string
}

type wordlistFilter struct {
	words []string
}

// NewWordlistFilter creates a profanity filter over the given words. With no
// words it uses a small built-in list.
func NewWordlistFilter(words ...string) ProfanityFilter {
	if len(words) == 0 {
		words = []string{"damn", "hell", "crap", "bastard", "piss"}
	}
	return &wordlistFilter{words: words}
}

func (f *wordlistFilter) Filter(text string) string {
	lower := strings.ToLower(text)
	for _, w := range f.words {
		for {
			idx := strings.Index(lower, w)
			if idx == -1 {
				break
			}
			masked := strings.Repeat("*", len(w))
			text = text[:idx] + masked + text[idx+len(w):]
			lower = lower[:idx] + masked + lower[idx+len(w):]
		}
	}
	return text
}

// Validator checks generated payloads against the structural schema and the
// content-quality rules.
type Validator struct {
	profanity ProfanityFilter
}

// NewValidator creates a validator with the given profanity filter.
func NewValidator(filter ProfanityFilter) *Validator {
	if filter == nil {
		filter = NewWordlistFilter()
	}
	return &Validator{profanity: filter}
}

const (
	subjectMin   = 10
	subjectMax   = 60
	preheaderMin = 20
	preheaderMax = 100
	snippetMin   = 30
	snippetMax   = 120
	sectionMin   = 50
	maxSections  = 5
)

// Validate returns ErrSchemaValidation for structural problems and
// ErrQualityCheck for content problems. A nil error means the payload is
// safe to cache and send.
func (v *Validator) Validate(n *Newsletter) error {
	if n == nil {
		return fmt.Errorf("%w: nil payload", ErrSchemaValidation)
	}
	if l := len(n.Subject); l < subjectMin || l > subjectMax {
		return fmt.Errorf("%w: subject length %d outside [%d,%d]", ErrSchemaValidation, l, subjectMin, subjectMax)
	}
	if l := len(n.Preheader); l < preheaderMin || l > preheaderMax {
		return fmt.Errorf("%w: preheader length %d outside [%d,%d]", ErrSchemaValidation, l, preheaderMin, preheaderMax)
	}
	if l := len(n.Snippet); l < snippetMin || l > snippetMax {
		return fmt.Errorf("%w: snippet length %d outside [%d,%d]", ErrSchemaValidation, l, snippetMin, snippetMax)
	}
	if len(n.Sections) == 0 || len(n.Sections) > maxSections {
		return fmt.Errorf("%w: %d sections outside [1,%d]", ErrSchemaValidation, len(n.Sections), maxSections)
	}
	for i, s := range n.Sections {
		if s.Heading == "" || s.HTML == "" || s.Text == "" {
			return fmt.Errorf("%w: section %d has an empty field", ErrSchemaValidation, i)
		}
	}

	var all strings.Builder
	for i, s := range n.Sections {
		if len(strings.TrimSpace(s.Text)) < sectionMin {
			return fmt.Errorf("%w: section %d text under %d characters", ErrQualityCheck, i, sectionMin)
		}
		all.WriteString(s.Text)
		all.WriteString(" ")
	}
	joined := all.String()
	if v.profanity.Filter(joined) != joined {
		return fmt.Errorf("%w: profanity detected in section text", ErrQualityCheck)
	}

	return nil
}
