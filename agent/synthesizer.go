package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"floatchat/database"
	apperrors "floatchat/errors"
	"floatchat/llmclient"
	"floatchat/prompts"
	"floatchat/web/types"

	"go.uber.org/zap"
)

// PlotHint is the synthesizer's suggestion for visualising the dataset.
type PlotHint struct {
	Type    string
	Heading string
}

// FinalAnswer is the user-facing narrative.
type FinalAnswer struct {
	Text         string
	CitationNote *string
	Degraded     bool
	Plot         *PlotHint
}

type synthesizerOutput struct {
	Answer      string `json:"answer"`
	PlotType    string `json:"plot_type"`
	PlotHeading string `json:"plot_heading"`
}

type Synthesizer struct {
	llm         Completer
	tokens      TokenCounter
	retry       RetryPolicy
	tokenBudget int
	maxRows     int
	answerChars int
	logger      *zap.Logger
}

// NewSynthesizer creates the synthesizer. tokens may be nil, in which case
// only the row cap bounds the dataset sent to the model.
func NewSynthesizer(llm Completer, tokens TokenCounter, retry RetryPolicy, tokenBudget, maxRows, answerChars int, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		llm:         llm,
		tokens:      tokens,
		retry:       retry,
		tokenBudget: tokenBudget,
		maxRows:     maxRows,
		answerChars: answerChars,
		logger:      logger,
	}
}

// Synthesize answers from the dataset alone. An empty dataset always yields
// CannotAnswerMessage without consulting the model. The only error returned
// is ErrServiceUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, clarified string, dataset database.Dataset, history []Turn, citationNote *string, language string) (FinalAnswer, error) {
	if dataset.Empty() {
		return FinalAnswer{Text: CannotAnswerMessage}, nil
	}

	payload, shown := s.fitRows(ctx, dataset)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", clarified)
	if citationNote != nil && *citationNote != "" {
		fmt.Fprintf(&b, "Sources to cite: %s\n\n", *citationNote)
	}
	fmt.Fprintf(&b, "Data (%d of %d rows):\n%s", shown, dataset.Len(), payload)

	messages := historyMessages(history, s.answerChars)
	messages = append(messages, types.AgentMessage{Role: "user", Content: b.String()})

	raw, err := CallWithRetry(ctx, s.retry, s.logger, "synthesize", func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, prompts.Synthesizer(language), messages, llmclient.FormatJSON)
	})
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			return FinalAnswer{}, err
		}
		s.logger.Warn("Synthesizer failed, returning row summary", zap.Error(err))
		return FinalAnswer{
			Text:         fmt.Sprintf("I retrieved %d row(s) for your query but could not summarise them right now.", dataset.Len()),
			CitationNote: citationNote,
			Degraded:     true,
		}, nil
	}

	answer := FinalAnswer{CitationNote: citationNote}
	var out synthesizerOutput
	if err := decodeObject(raw, &out); err != nil || strings.TrimSpace(out.Answer) == "" {
		s.logger.Warn("Synthesizer output not understood, using raw text", zap.Int("raw_length", len(raw)))
		answer.Text = strings.TrimSpace(raw)
		answer.Degraded = true
		if answer.Text == "" {
			answer.Text = fmt.Sprintf("I retrieved %d row(s) for your query but could not summarise them right now.", dataset.Len())
		}
		return answer, nil
	}

	answer.Text = strings.TrimSpace(out.Answer)
	if pt := strings.TrimSpace(out.PlotType); pt != "" && !strings.EqualFold(pt, "none") {
		answer.Plot = &PlotHint{Type: pt, Heading: strings.TrimSpace(out.PlotHeading)}
	}
	return answer, nil
}

// fitRows serialises as many leading rows as fit the token budget, halving
// until they do. It returns the JSON and the number of rows it holds.
func (s *Synthesizer) fitRows(ctx context.Context, dataset database.Dataset) (string, int) {
	n := dataset.Len()
	if s.maxRows > 0 && n > s.maxRows {
		n = s.maxRows
	}

	for {
		payload := recordsJSON(dataset.Head(n))
		if s.tokens == nil || s.tokenBudget <= 0 || n <= 1 {
			return payload, n
		}

		count, err := CallWithRetry(ctx, RetryPolicy{MaxAttempts: 1}, s.logger, "count_tokens", func(ctx context.Context) (int, error) {
			return s.tokens.CountTokens(ctx, payload)
		})
		if err != nil {
			s.logger.Debug("Token count unavailable, using row cap", zap.Error(err))
			return payload, n
		}
		if count <= s.tokenBudget {
			return payload, n
		}
		s.logger.Debug("Dataset over token budget, halving",
			zap.Int("rows", n), zap.Int("tokens", count), zap.Int("budget", s.tokenBudget))
		n /= 2
	}
}

func recordsJSON(d database.Dataset) string {
	data, err := json.Marshal(d.Records())
	if err != nil {
		return "[]"
	}
	return string(data)
}
