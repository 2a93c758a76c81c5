package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validNewsletter() *Newsletter {
	text := strings.Repeat("The sky keeps its own steady schedule tonight. ", 3)
	return &Newsletter{
		Subject:   "Your Evening Sky Briefing",
		Preheader: "Three planets worth stepping outside for tonight.",
		Snippet:   "Mercury, Venus, and a waxing moon share the western sky.",
		Sections: []Section{{
			ID:      "s1",
			Heading: "Look west after sunset",
			HTML:    "<p>" + text + "</p>",
			Text:    text,
		}},
	}
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(nil)
	assert.NoError(t, v.Validate(validNewsletter()))
}

func TestValidateSchema(t *testing.T) {
	v := NewValidator(nil)

	t.Run("short subject", func(t *testing.T) {
		n := validNewsletter()
		n.Subject = "Hi"
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("long subject", func(t *testing.T) {
		n := validNewsletter()
		n.Subject = strings.Repeat("x", 61)
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("short preheader", func(t *testing.T) {
		n := validNewsletter()
		n.Preheader = "too short"
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("short snippet", func(t *testing.T) {
		n := validNewsletter()
		n.Snippet = "tiny"
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("no sections", func(t *testing.T) {
		n := validNewsletter()
		n.Sections = nil
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("too many sections", func(t *testing.T) {
		n := validNewsletter()
		for i := 0; i < 6; i++ {
			n.Sections = append(n.Sections, n.Sections[0])
		}
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("empty section field", func(t *testing.T) {
		n := validNewsletter()
		n.Sections[0].Heading = ""
		assert.ErrorIs(t, v.Validate(n), ErrSchemaValidation)
	})

	t.Run("nil payload", func(t *testing.T) {
		assert.ErrorIs(t, v.Validate(nil), ErrSchemaValidation)
	})
}

func TestValidateQuality(t *testing.T) {
	v := NewValidator(nil)

	t.Run("section text under floor", func(t *testing.T) {
		n := validNewsletter()
		n.Sections[0].Text = "short body"
		err := v.Validate(n)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrQualityCheck)
	})

	t.Run("profanity rejected", func(t *testing.T) {
		n := validNewsletter()
		n.Sections[0].Text = strings.Repeat("What the hell is Mercury doing over there tonight. ", 2)
		assert.ErrorIs(t, v.Validate(n), ErrQualityCheck)
	})

	t.Run("custom filter", func(t *testing.T) {
		v := NewValidator(NewWordlistFilter("schedule"))
		assert.ErrorIs(t, v.Validate(validNewsletter()), ErrQualityCheck)
	})
}

func TestWordlistFilterMasks(t *testing.T) {
	f := NewWordlistFilter("hell")
	assert.Equal(t, "what the **** and also ****o", f.Filter("what the hell and also hello"))
	assert.Equal(t, "clean text", f.Filter("clean text"))
}
