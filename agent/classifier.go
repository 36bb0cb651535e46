package agent

import (
	"context"
	"strings"

	apperrors "floatchat/errors"
	"floatchat/llmclient"
	"floatchat/prompts"
	"floatchat/web/types"

	"go.uber.org/zap"
)

// RetrievalDecision selects the retrieval path.
type RetrievalDecision int

const (
	// SimilarityAndStructured is the default whenever the decision is unclear.
	SimilarityAndStructured RetrievalDecision = iota
	StructuredOnly
)

func (d RetrievalDecision) String() string {
	if d == StructuredOnly {
		return "structured_only"
	}
	return "similarity_and_structured"
}

type Classifier struct {
	llm    Completer
	retry  RetryPolicy
	logger *zap.Logger
}

func NewClassifier(llm Completer, retry RetryPolicy, logger *zap.Logger) *Classifier {
	return &Classifier{llm: llm, retry: retry, logger: logger}
}

// Classify decides between structured-only and similarity-and-structured
// retrieval. The only error returned is ErrServiceUnavailable.
func (c *Classifier) Classify(ctx context.Context, clarified string) (RetrievalDecision, error) {
	messages := []types.AgentMessage{{Role: "user", Content: clarified}}
	raw, err := CallWithRetry(ctx, c.retry, c.logger, "classify", func(ctx context.Context) (string, error) {
		return c.llm.Complete(ctx, prompts.Classifier(), messages, llmclient.FormatJSON)
	})
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			return SimilarityAndStructured, err
		}
		c.logger.Warn("Classifier failed, using similarity and structured retrieval", zap.Error(err))
		return SimilarityAndStructured, nil
	}

	var out struct {
		SearchType string `json:"search_type"`
		Decision   string `json:"decision"`
	}
	if err := decodeObject(raw, &out); err != nil {
		c.logger.Warn("Classifier output not understood, using similarity and structured retrieval",
			zap.Error(apperrors.ErrClassificationUnparsable), zap.NamedError("cause", err))
		return SimilarityAndStructured, nil
	}

	value := out.SearchType
	if value == "" {
		value = out.Decision
	}
	switch normalizeDecision(value) {
	case "sql", "structured", "structuredonly":
		return StructuredOnly, nil
	case "vector", "similarity", "similarityandstructured", "both":
		return SimilarityAndStructured, nil
	}

	c.logger.Warn("Unknown retrieval decision, using similarity and structured retrieval",
		zap.Error(apperrors.ErrClassificationUnparsable), zap.String("value", value))
	return SimilarityAndStructured, nil
}

func normalizeDecision(s string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}
