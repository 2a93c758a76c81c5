package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinifyHTML(t *testing.T) {
	t.Run("collapses whitespace runs", func(t *testing.T) {
		assert.Equal(t, "<p>hello world</p>", MinifyHTML("<p>hello    \n\t world</p>"))
	})

	t.Run("strips inter-tag whitespace", func(t *testing.T) {
		assert.Equal(t, "<div><p>a</p><p>b</p></div>",
			MinifyHTML("<div>\n  <p>a</p>\n  <p>b</p>\n</div>"))
	})

	t.Run("trims ends", func(t *testing.T) {
		assert.Equal(t, "<p>x</p>", MinifyHTML("  <p>x</p>  "))
	})

	t.Run("already minimal", func(t *testing.T) {
		assert.Equal(t, "<p>x</p>", MinifyHTML("<p>x</p>"))
	})
}

func TestMinifyNewsletter(t *testing.T) {
	n := &Newsletter{Sections: []Section{{
		HTML: "<div>\n  <p>body</p>\n</div>",
		Text: "  body text  ",
	}}}
	minify(n)
	assert.Equal(t, "<div><p>body</p></div>", n.Sections[0].HTML)
	assert.Equal(t, "body text", n.Sections[0].Text)
}
