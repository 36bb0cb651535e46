package agent

import (
	"strings"

	"floatchat/web/types"

	"github.com/jdkato/prose/v2"
)

// historyMessages renders prior turns as alternating chat messages. Long
// answers are cut back to whole sentences within maxChars.
func historyMessages(turns []Turn, maxChars int) []types.AgentMessage {
	msgs := make([]types.AgentMessage, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			types.AgentMessage{Role: "user", Content: t.Question},
			types.AgentMessage{Role: "assistant", Content: trimToSentences(t.Answer, maxChars)},
		)
	}
	return msgs
}

func trimToSentences(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err == nil {
		var b strings.Builder
		for _, s := range doc.Sentences() {
			next := strings.TrimSpace(s.Text)
			if b.Len()+len(next)+1 > maxChars {
				break
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(next)
		}
		if b.Len() > 0 {
			return b.String()
		}
	}

	// A single sentence longer than the limit is cut on a rune boundary.
	cut := []rune(text)
	if len(cut) > maxChars {
		cut = cut[:maxChars]
	}
	return strings.TrimSpace(string(cut)) + "..."
}
