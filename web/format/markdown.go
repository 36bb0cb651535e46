package format

import (
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

var numberedItem = regexp.MustCompile(`^\d+\.\s`)

// PreprocessAssistantText normalizes model output for display.
func PreprocessAssistantText(text string) string {
	if text == "" {
		return text
	}

	// Replace curly quotes (helps readability)
	text = strings.NewReplacer(
		"\u201c", "\"",
		"\u201d", "\"",
		"\u2018", "'",
		"\u2019", "'",
	).Replace(text)

	return strings.TrimSpace(text)
}

// RenderHTML converts an answer written in markdown to HTML.
func RenderHTML(text string) string {
	text = PreprocessAssistantText(text)
	if text == "" {
		return ""
	}
	text = normalizeMarkdownLists(text)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return strings.TrimSpace(string(markdown.ToHTML([]byte(text), p, r)))
}

func isListItem(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "+ ") ||
		numberedItem.MatchString(line)
}

// normalizeMarkdownLists inserts the blank line markdown needs before a list.
// Models often write "**Summary:**\n- item" without one.
func normalizeMarkdownLists(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i > 0 && isListItem(trimmed) {
			prev := strings.TrimSpace(lines[i-1])
			if prev != "" && !isListItem(prev) {
				result = append(result, "")
			}
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}
