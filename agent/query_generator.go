package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"floatchat/database"
	apperrors "floatchat/errors"
	"floatchat/llmclient"
	"floatchat/prompts"
	"floatchat/web/types"

	"go.uber.org/zap"
)

// Granularity of the rows a structured query returns.
type Granularity string

const (
	GranularityRaw        Granularity = "raw"
	GranularityAggregated Granularity = "aggregated"
)

// maxPromptCandidates caps the float ids passed to the generator.
const maxPromptCandidates = 100

// StructuredQuerySpec is a validated read-only statement plus its hints.
type StructuredQuerySpec struct {
	Statement     string
	Granularity   Granularity
	PlotSuggested bool
	CitationNote  *string
}

// GenerationError means no usable statement could be produced.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query generation failed: %s: %v", e.Reason, e.Err)
	}
	return "query generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrQueryGenerationFailed}
	}
	return []error{apperrors.ErrQueryGenerationFailed, e.Err}
}

type generatorOutput struct {
	SQL             string     `json:"sql"`
	SQLQuery        string     `json:"sql_query"`
	Granularity     string     `json:"granularity"`
	DataSize        string     `json:"data_size"`
	AggregationUsed flexBool   `json:"aggregation_used"`
	SuggestPlot     flexBool   `json:"suggest_plot"`
	SourcesToCite   flexString `json:"sources_to_cite"`
	CitationNote    flexString `json:"citation_note"`
}

type QueryGenerator struct {
	llm    Completer
	table  string
	retry  RetryPolicy
	logger *zap.Logger
}

func NewQueryGenerator(llm Completer, table string, retry RetryPolicy, logger *zap.Logger) *QueryGenerator {
	return &QueryGenerator{llm: llm, table: table, retry: retry, logger: logger}
}

// Generate produces one read-only statement over the data table. candidates,
// when present, narrow the statement to those floats. Failures are either
// ErrServiceUnavailable or a *GenerationError.
func (g *QueryGenerator) Generate(ctx context.Context, clarified string, candidates []int64) (StructuredQuerySpec, error) {
	messages := []types.AgentMessage{{Role: "user", Content: generatorRequest(clarified, candidates)}}

	raw, err := CallWithRetry(ctx, g.retry, g.logger, "generate_query", func(ctx context.Context) (string, error) {
		return g.llm.Complete(ctx, prompts.QueryGenerator(g.table), messages, llmclient.FormatJSON)
	})
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			return StructuredQuerySpec{}, err
		}
		return StructuredQuerySpec{}, &GenerationError{Reason: "completion failed", Err: err}
	}

	var out generatorOutput
	if err := decodeObject(raw, &out); err != nil {
		return StructuredQuerySpec{}, &GenerationError{Reason: "output is not a JSON object", Err: err}
	}

	statement := strings.TrimSpace(out.SQL)
	if statement == "" {
		statement = strings.TrimSpace(out.SQLQuery)
	}
	if statement == "" {
		return StructuredQuerySpec{}, &GenerationError{Reason: "no sql in output"}
	}

	statement, err = database.ValidateReadOnly(statement, g.table)
	if err != nil {
		return StructuredQuerySpec{}, &GenerationError{Reason: "statement rejected", Err: err}
	}

	query := StructuredQuerySpec{
		Statement:     statement,
		Granularity:   decideGranularity(out),
		PlotSuggested: out.SuggestPlot.Value,
	}
	note := string(out.SourcesToCite)
	if note == "" {
		note = string(out.CitationNote)
	}
	if note != "" {
		query.CitationNote = &note
	}

	g.logger.Debug("Structured query generated",
		zap.String("statement", query.Statement),
		zap.String("granularity", string(query.Granularity)),
		zap.Bool("plot_suggested", query.PlotSuggested),
		zap.Int("candidates", len(candidates)))
	return query, nil
}

// decideGranularity returns raw only when the output asks for it outright.
func decideGranularity(out generatorOutput) Granularity {
	switch strings.ToLower(strings.TrimSpace(out.Granularity)) {
	case "raw":
		return GranularityRaw
	case "aggregated", "aggregate":
		return GranularityAggregated
	}
	if strings.EqualFold(strings.TrimSpace(out.DataSize), "small") &&
		out.AggregationUsed.Set && !out.AggregationUsed.Value {
		return GranularityRaw
	}
	return GranularityAggregated
}

func generatorRequest(clarified string, candidates []int64) string {
	if len(candidates) == 0 {
		return clarified
	}
	ids := candidates
	if len(ids) > maxPromptCandidates {
		ids = ids[:maxPromptCandidates]
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s\n\nCandidate float ids, most relevant first (restrict the query to these floats): %s",
		clarified, strings.Join(parts, ", "))
}
