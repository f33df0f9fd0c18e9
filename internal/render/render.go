// Package render turns chat messages into HTML or terminal text. Bot text is
// treated as markup and sanitized; user text is never interpreted.
package render

import (
	"html"
	"html/template"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/muesli/reflow/wordwrap"
)

var (
	botPolicy   = bluemonday.UGCPolicy()
	stripPolicy = bluemonday.StrictPolicy()
)

// BotHTML sanitizes reply markup for insertion into a page
func BotHTML(text string) template.HTML {
	return template.HTML(botPolicy.Sanitize(text))
}

// UserHTML escapes user text so it is shown literally
func UserHTML(text string) template.HTML {
	return template.HTML(html.EscapeString(text))
}

// BotText reduces reply markup to plain terminal text
func BotText(text string) string {
	text = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n").Replace(text)
	return stripControl(strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(text))))
}

// UserText makes user input safe to print on a terminal
func UserText(text string) string {
	return stripControl(text)
}

// Wrap breaks text at word boundaries to fit width columns
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// stripControl drops control characters other than newlines and tabs, so
// replies cannot smuggle escape sequences into the terminal.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
