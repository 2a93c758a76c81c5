package content

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	interTagSpace  = regexp.MustCompile(`>\s+<`)
	leadTrailSpace = regexp.MustCompile(`^\s+|\s+$`)
)

// MinifyHTML collapses whitespace runs and strips whitespace between tags.
// Cached bodies shrink noticeably; rendering is unaffected.
func MinifyHTML(html string) string {
	html = whitespaceRun.ReplaceAllString(html, " ")
	html = interTagSpace.ReplaceAllString(html, "><")
	return leadTrailSpace.ReplaceAllString(html, "")
}

// minify rewrites every section's HTML in place and trims text fields.
func minify(n *Newsletter) {
	for i := range n.Sections {
		n.Sections[i].HTML = MinifyHTML(n.Sections[i].HTML)
		n.Sections[i].Text = strings.TrimSpace(n.Sections[i].Text)
	}
}
