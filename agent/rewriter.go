package agent

import (
	"context"
	"strings"
	"time"

	apperrors "floatchat/errors"
	"floatchat/llmclient"
	"floatchat/prompts"
	"floatchat/web/types"

	"go.uber.org/zap"
)

// RewriteKind says what the rewriter made of a question.
type RewriteKind int

const (
	// RewriteClarified is a self-contained English query for retrieval.
	RewriteClarified RewriteKind = iota
	// RewriteShortCircuit is a direct reply that needs no data.
	RewriteShortCircuit
	// RewriteTheory is a conceptual explanation that needs no data.
	RewriteTheory
)

func (k RewriteKind) String() string {
	switch k {
	case RewriteShortCircuit:
		return "short_circuit"
	case RewriteTheory:
		return "theory"
	default:
		return "clarified"
	}
}

type RewriteResult struct {
	Kind     RewriteKind
	Text     string
	Degraded bool
}

type rewriterOutput struct {
	EnhancedQuery string `json:"enhanced_query"`
	Theory        string `json:"theory"`
	Reply         string `json:"reply"`
}

// Rewriter resolves references against the conversation and turns relative
// dates into absolute ones using the clock, never the model's own idea of now.
type Rewriter struct {
	llm         Completer
	clock       Clock
	location    *time.Location
	retry       RetryPolicy
	answerChars int
	logger      *zap.Logger
}

func NewRewriter(llm Completer, clock Clock, location *time.Location, retry RetryPolicy, answerChars int, logger *zap.Logger) *Rewriter {
	if location == nil {
		location = time.UTC
	}
	return &Rewriter{
		llm:         llm,
		clock:       clock,
		location:    location,
		retry:       retry,
		answerChars: answerChars,
		logger:      logger,
	}
}

// Rewrite returns the clarified query or a direct reply. Errors are either
// ErrServiceUnavailable or a permanent completion failure.
func (r *Rewriter) Rewrite(ctx context.Context, question, language string, history []Turn) (RewriteResult, error) {
	now := r.clock.Now().In(r.location)
	system := prompts.Rewriter(now.Format("2006-01-02 15:04:05 Monday"), r.location.String(), language)

	messages := historyMessages(history, r.answerChars)
	messages = append(messages, types.AgentMessage{Role: "user", Content: question})

	raw, err := CallWithRetry(ctx, r.retry, r.logger, "rewrite", func(ctx context.Context) (string, error) {
		return r.llm.Complete(ctx, system, messages, llmclient.FormatJSON)
	})
	if err != nil {
		return RewriteResult{}, err
	}

	return r.parse(raw), nil
}

func (r *Rewriter) parse(raw string) RewriteResult {
	var out rewriterOutput
	if err := decodeObject(raw, &out); err == nil {
		switch {
		case strings.TrimSpace(out.EnhancedQuery) != "":
			return RewriteResult{Kind: RewriteClarified, Text: strings.TrimSpace(out.EnhancedQuery)}
		case strings.TrimSpace(out.Theory) != "":
			return RewriteResult{Kind: RewriteTheory, Text: strings.TrimSpace(out.Theory)}
		case strings.TrimSpace(out.Reply) != "":
			return RewriteResult{Kind: RewriteShortCircuit, Text: strings.TrimSpace(out.Reply)}
		}
	}

	r.logger.Warn("Rewriter output not understood, replying with raw text",
		zap.Error(apperrors.ErrRewriteUnparsable),
		zap.Int("raw_length", len(raw)))

	text := strings.TrimSpace(raw)
	if text == "" {
		text = RewriteApologyMessage
	}
	return RewriteResult{Kind: RewriteShortCircuit, Text: text, Degraded: true}
}
