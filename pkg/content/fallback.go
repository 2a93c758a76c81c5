package content

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/astralpost/astralpost/pkg/observability"
)

// StaticFallbacks holds the canned per-perspective payloads that terminate
// the pipeline when everything else has failed. Get never fails: an unknown
// perspective falls back to calm, and calm always exists.
type StaticFallbacks struct {
	templates map[Perspective]Newsletter
	logger    *observability.Logger
}

type fallbackFile struct {
	Templates map[string]struct {
		Subject   string `yaml:"subject"`
		Preheader string `yaml:"preheader"`
		Snippet   string `yaml:"snippet"`
		Sections  []struct {
			ID      string `yaml:"id"`
			Heading string `yaml:"heading"`
			HTML    string `yaml:"html"`
			Text    string `yaml:"text"`
		} `yaml:"sections"`
	} `yaml:"templates"`
}

// builtinFallbacks are compiled in so a missing or broken YAML file can
// never leave the safety net empty.
func builtinFallbacks() map[Perspective]Newsletter {
	mk := func(subject, preheader, snippet, heading, text string) Newsletter {
		return Newsletter{
			Subject:   subject,
			Preheader: preheader,
			Snippet:   snippet,
			Sections: []Section{{
				ID:      "daily",
				Heading: heading,
				HTML:    "<p>" + text + "</p>",
				Text:    text,
			}},
			Meta: Metadata{Model: "static"},
		}
	}
	return map[Perspective]Newsletter{
		PerspectiveCalm: mk(
			"Your Cosmic Moment",
			"A quiet pause while the sky keeps turning overhead.",
			"Take one slow breath; the sky is in no hurry and neither are you.",
			"A moment of stillness",
			"The sky moves at its own unhurried pace today, and you are allowed to do the same. "+
				"Step outside if you can, notice the light, and let one small worry set with the sun."),
		PerspectiveKnowledge: mk(
			"Today's Sky, Briefly",
			"A short note on what the planets are actually doing up there.",
			"A clear sky fact beats a vague forecast, every single day.",
			"One thing worth knowing",
			"Every planet you can see tonight is following the same path the ancients charted by eye. "+
				"Spend a minute finding one of them and you are doing astronomy the original way."),
		PerspectiveSuccess: mk(
			"Momentum Check-In",
			"One small, concrete push to keep your week moving forward.",
			"Pick the smallest next step and take it before lunch today.",
			"Keep the streak alive",
			"Progress compounds quietly. Choose the one task you have been circling, give it "+
				"fifteen undistracted minutes this morning, and let that win set the tone for the day."),
		PerspectiveEvidence: mk(
			"The Observable Sky",
			"What tonight's sky will verifiably contain, no interpretation added.",
			"The stars are indifferent, which is honestly quite freeing.",
			"Facts only",
			"Tonight's sky will contain the same stars as last night, arranged almost identically. "+
				"Whatever happens today happens because of what you and the people around you do."),
	}
}

// LoadStaticFallbacks loads the canned payloads, starting from the built-in
// set and overlaying any templates in the YAML file at path.
func LoadStaticFallbacks(path string, logger *observability.Logger) (*StaticFallbacks, error) {
	sf := &StaticFallbacks{
		templates: builtinFallbacks(),
		logger:    logger.WithField("component", "content.fallbacks"),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		sf.logger.WithField("path", path).Info("no fallback template file, using built-ins")
		return sf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback templates: %w", err)
	}

	var file fallbackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fallback templates: %w", err)
	}

	for name, tpl := range file.Templates {
		p := Perspective(name)
		if !p.Valid() {
			return nil, fmt.Errorf("fallback template for unknown perspective %q", name)
		}
		n := Newsletter{
			Subject:   tpl.Subject,
			Preheader: tpl.Preheader,
			Snippet:   tpl.Snippet,
			Meta:      Metadata{Model: "static"},
		}
		for _, s := range tpl.Sections {
			n.Sections = append(n.Sections, Section{ID: s.ID, Heading: s.Heading, HTML: s.HTML, Text: s.Text})
		}
		sf.templates[p] = n
	}

	return sf, nil
}

// Get returns the canned payload for the perspective. The copy carries a
// fresh generated-at timestamp so downstream consumers see when it was served.
func (sf *StaticFallbacks) Get(p Perspective, at time.Time) *Newsletter {
	tpl, ok := sf.templates[p]
	if !ok {
		tpl = sf.templates[PerspectiveCalm]
	}
	n := tpl
	n.Sections = append([]Section(nil), tpl.Sections...)
	n.Meta.GeneratedAt = at
	return &n
}
