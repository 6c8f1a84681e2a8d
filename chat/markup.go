package chat

import (
	"html"
	"regexp"
	"strings"
)

// markupRe matches **bold** or [label](url) / [label](<url>).
var markupRe = regexp.MustCompile(`\*\*(.+?)\*\*|\[([^\]]+)\]\(<?([^()<>\s]+)>?\)`)

// Bold wraps s in the bold marker.
func Bold(s string) string { return "**" + s + "**" }

// Link formats a labelled link.
func Link(label, url string) string { return "[" + label + "](" + url + ")" }

// RenderHTML converts markup to Telegram HTML, escaping everything else.
func RenderHTML(s string) string {
	return render(s, html.EscapeString,
		func(b string) string { return "<b>" + html.EscapeString(b) + "</b>" },
		func(label, url string) string {
			return `<a href="` + html.EscapeString(url) + `">` + html.EscapeString(label) + "</a>"
		})
}

// RenderPlain strips markup for platforms without formatting. Links become "label: url".
func RenderPlain(s string) string {
	ident := func(s string) string { return s }
	return render(s, ident, ident, func(label, url string) string { return label + ": " + url })
}

func render(s string, text func(string) string, bold func(string) string, link func(label, url string) string) string {
	var b strings.Builder
	last := 0
	for _, m := range markupRe.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(text(s[last:m[0]]))
		if m[2] >= 0 {
			b.WriteString(bold(s[m[2]:m[3]]))
		} else {
			b.WriteString(link(s[m[4]:m[5]], s[m[6]:m[7]]))
		}
		last = m[1]
	}
	b.WriteString(text(s[last:]))
	return b.String()
}
