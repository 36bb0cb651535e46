package agent

import (
	"context"
	"encoding/json"

	apperrors "floatchat/errors"
	"floatchat/filter"
	"floatchat/llmclient"
	"floatchat/prompts"
	"floatchat/web/types"

	"go.uber.org/zap"
)

// FilterBuilder derives the metadata filter for similarity search. Anything
// off the allow-list, temporal, or not evidenced in the query is dropped.
type FilterBuilder struct {
	llm    Completer
	retry  RetryPolicy
	logger *zap.Logger
}

func NewFilterBuilder(llm Completer, retry RetryPolicy, logger *zap.Logger) *FilterBuilder {
	return &FilterBuilder{llm: llm, retry: retry, logger: logger}
}

// Build returns the reduced filter, or the empty filter when nothing usable
// was proposed. The only error returned is ErrServiceUnavailable.
func (b *FilterBuilder) Build(ctx context.Context, clarified string) (filter.Expression, error) {
	messages := []types.AgentMessage{{Role: "user", Content: clarified}}
	raw, err := CallWithRetry(ctx, b.retry, b.logger, "filter", func(ctx context.Context) (string, error) {
		return b.llm.Complete(ctx, prompts.Filters(), messages, llmclient.FormatJSON)
	})
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			return filter.Empty(), err
		}
		b.logger.Warn("Filter builder failed, searching without a filter", zap.Error(err))
		return filter.Empty(), nil
	}

	where, ok := whereClause(raw)
	if !ok {
		b.logger.Warn("Filter output not understood, searching without a filter", zap.Int("raw_length", len(raw)))
		return filter.Empty(), nil
	}

	proposed, rejected := filter.Parse(where)
	reduced, unsupported := filter.Reduce(proposed, clarified)
	rejected = append(rejected, unsupported...)

	for _, r := range rejected {
		b.logger.Info("Filter predicate dropped",
			zap.Error(apperrors.ErrFilterAttributeRejected),
			zap.String("attribute", r.Attribute),
			zap.String("reason", r.Reason))
	}

	b.logger.Debug("Filter built",
		zap.String("proposed", proposed.String()),
		zap.String("filter", reduced.String()))
	return reduced, nil
}

// whereClause accepts {"where": {...}} or a bare filter object.
func whereClause(raw string) (map[string]any, bool) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return nil, false
	}
	var top map[string]any
	if err := json.Unmarshal([]byte(obj), &top); err != nil {
		return nil, false
	}
	w, present := top["where"]
	if !present {
		return top, true
	}
	if w == nil {
		return map[string]any{}, true
	}
	where, ok := w.(map[string]any)
	return where, ok
}
