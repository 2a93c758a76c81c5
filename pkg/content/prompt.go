package content

import (
	"fmt"
	"strings"

	"github.com/astralpost/astralpost/pkg/almanac"
)

// Composer builds a provider-agnostic prompt from the day's context.
type Composer interface {
	Compose(req Request, daily *almanac.DailyContext, news []almanac.Headline) Prompt
}

var perspectiveVoice = map[Perspective]string{
	PerspectiveCalm:      "a gentle, grounding guide who helps the reader slow down",
	PerspectiveKnowledge: "a curious teacher who explains the sky's mechanics in plain language",
	PerspectiveSuccess:   "an energetic coach who frames the day around momentum and goals",
	PerspectiveEvidence:  "a skeptical astronomer who sticks to observable facts with a wink",
}

// DefaultComposer is the built-in prompt composer.
type DefaultComposer struct {
	Model     string
	MaxTokens int
}

// Compose renders the system and user prompts for one newsletter.
func (c *DefaultComposer) Compose(req Request, daily *almanac.DailyContext, news []almanac.Headline) Prompt {
	voice, ok := perspectiveVoice[req.Perspective]
	if !ok {
		voice = perspectiveVoice[PerspectiveCalm]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write today's newsletter for %s.\n", daily.Date)
	fmt.Fprintf(&sb, "Moon phase: %s. Season: %s.\n", daily.MoonPhase, daily.Season)
	for _, p := range daily.Positions {
		if p.Retrograde {
			fmt.Fprintf(&sb, "%s is retrograde in %s (%.1f deg).\n", p.Planet, p.Sign, p.Degree)
		} else {
			fmt.Fprintf(&sb, "%s is in %s (%.1f deg).\n", p.Planet, p.Sign, p.Degree)
		}
	}
	if len(news) > 0 {
		sb.WriteString("Weave in at most one of today's headlines if it fits naturally:\n")
		for i, h := range news {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", h.Title, h.Source)
		}
	}
	if req.Tier == "pro" {
		sb.WriteString("The reader is a pro subscriber: include a deeper closing section.\n")
	}

	maxTokens := c.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}

	return Prompt{
		System: fmt.Sprintf(
			"You are %s. Produce a short daily newsletter with a subject line, "+
				"a preheader, a shareable one-line snippet, and between one and five "+
				"sections. Each section needs a heading, simple HTML, and a plain-text "+
				"rendering. Keep the subject between 10 and 60 characters.", voice),
		User:        sb.String(),
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: 0.8,
	}
}
