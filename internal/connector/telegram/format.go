package telegram

import (
	"regexp"
	"strings"
)

var (
	// bold before italic so ** is consumed first
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*(.+?)\*`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// MarkdownToHTML converts the Markdown subset used by the digest and
// dialog texts to Telegram's HTML flavour.
func MarkdownToHTML(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = formatLine(line)
	}
	return strings.Join(out, "\n")
}

func formatLine(line string) string {
	// Lift inline code spans out before escaping so their content is
	// escaped exactly once.
	type span struct{ placeholder, html string }
	var spans []span

	line = reInlineCode.ReplaceAllStringFunc(line, func(match string) string {
		inner := reInlineCode.FindStringSubmatch(match)[1]
		ph := "\x00" + string(rune('A'+len(spans))) + "\x00"
		spans = append(spans, span{ph, "<code>" + escapeHTML(inner) + "</code>"})
		return ph
	})

	line = escapeHTML(line)
	line = reBold.ReplaceAllString(line, "<b>$1</b>")
	line = reItalic.ReplaceAllString(line, "<i>$1</i>")
	line = reLink.ReplaceAllString(line, `<a href="$2">$1</a>`)

	for _, s := range spans {
		line = strings.Replace(line, s.placeholder, s.html, 1)
	}
	return line
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// StripMarkdown removes formatting for the plain-text fallback path.
func StripMarkdown(md string) string {
	out := reInlineCode.ReplaceAllString(md, "$1")
	out = reBold.ReplaceAllString(out, "$1")
	out = reItalic.ReplaceAllString(out, "$1")
	out = reLink.ReplaceAllString(out, "$1 ($2)")
	return out
}
