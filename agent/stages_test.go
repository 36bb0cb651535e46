package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"floatchat/database"
	apperrors "floatchat/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriterParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind RewriteKind
		wantText string
		degraded bool
	}{
		{name: "clarified", raw: `{"enhanced_query": " Retrieve floats in 2023. "}`, wantKind: RewriteClarified, wantText: "Retrieve floats in 2023."},
		{name: "fenced", raw: "```json\n{\"enhanced_query\": \"Retrieve floats.\"}\n```", wantKind: RewriteClarified, wantText: "Retrieve floats."},
		{name: "theory", raw: `{"theory": "Argo floats drift at 1000 dbar."}`, wantKind: RewriteTheory, wantText: "Argo floats drift at 1000 dbar."},
		{name: "reply", raw: `{"reply": "` + OffDomainMessage + `"}`, wantKind: RewriteShortCircuit, wantText: OffDomainMessage},
		{name: "query_wins_over_reply", raw: `{"reply": "hi", "enhanced_query": "Retrieve floats."}`, wantKind: RewriteClarified, wantText: "Retrieve floats."},
		{name: "no_known_key", raw: `{"answer": "x"}`, wantKind: RewriteShortCircuit, wantText: `{"answer": "x"}`, degraded: true},
		{name: "prose", raw: "Could you clarify?", wantKind: RewriteShortCircuit, wantText: "Could you clarify?", degraded: true},
		{name: "empty", raw: "  ", wantKind: RewriteShortCircuit, wantText: RewriteApologyMessage, degraded: true},
	}

	r := NewRewriter(nil, fixedClock{testNow}, time.UTC, testPolicy(), 600, testLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.parse(tt.raw)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.degraded, got.Degraded)
		})
	}
}

func TestRewriterUsesConfiguredTimezone(t *testing.T) {
	llm := newScriptedLLM(map[stage]string{stageRewrite: `{"enhanced_query": "x"}`})
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	r := NewRewriter(llm, fixedClock{testNow}, loc, testPolicy(), 600, testLogger(t))
	_, err = r.Rewrite(context.Background(), "last week", "hi", nil)
	require.NoError(t, err)

	system := llm.systems[stageRewrite]
	assert.Contains(t, system, "2025-09-14 16:00:00")
	assert.Contains(t, system, "Asia/Kolkata")
	assert.Contains(t, system, "Hindi")
}

func TestRewriterPermanentErrorPropagates(t *testing.T) {
	llm := newScriptedLLM(nil)
	llm.errs[stageRewrite] = apperrors.Permanent(errors.New("401 unauthorized"))
	r := NewRewriter(llm, fixedClock{testNow}, time.UTC, testPolicy(), 600, testLogger(t))

	_, err := r.Rewrite(context.Background(), "q", "en", nil)
	require.Error(t, err)
	assert.False(t, apperrors.IsServiceUnavailable(err))
	assert.Equal(t, 1, llm.callCount(stageRewrite))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
		want RetrievalDecision
	}{
		{name: "sql", raw: `{"search_type": "sql"}`, want: StructuredOnly},
		{name: "vector", raw: `{"search_type": "vector"}`, want: SimilarityAndStructured},
		{name: "spelled_out", raw: `{"decision": "structured-only"}`, want: StructuredOnly},
		{name: "uppercase", raw: `{"search_type": "SQL"}`, want: StructuredOnly},
		{name: "unknown_value", raw: `{"search_type": "hybrid-ish"}`, want: SimilarityAndStructured},
		{name: "not_json", raw: `sql`, want: SimilarityAndStructured},
		{name: "permanent_error", err: apperrors.Permanent(errors.New("bad request")), want: SimilarityAndStructured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newScriptedLLM(map[stage]string{stageClassify: tt.raw})
			if tt.err != nil {
				llm.errs[stageClassify] = tt.err
			}
			c := NewClassifier(llm, testPolicy(), testLogger(t))

			got, err := c.Classify(context.Background(), "Retrieve floats.")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnavailable(t *testing.T) {
	llm := newScriptedLLM(nil)
	llm.errs[stageClassify] = errTransient
	c := NewClassifier(llm, testPolicy(), testLogger(t))

	_, err := c.Classify(context.Background(), "Retrieve floats.")
	assert.True(t, apperrors.IsServiceUnavailable(err))
}

func TestFilterBuilderBuild(t *testing.T) {
	tests := []struct {
		name      string
		clarified string
		raw       string
		want      string
	}{
		{
			name:      "region_flag",
			clarified: "Retrieve missions that visited the Arabian Sea.",
			raw:       `{"where": {"VISITED ARABIAN SEA": true}}`,
			want:      "VISITED ARABIAN SEA eq true",
		},
		{
			name:      "temporal_dropped",
			clarified: "Retrieve oxygen floats launched in 2021.",
			raw:       `{"where": {"$and": [{"HAS DOXY": true}, {"LAUNCH_DATE": {"$gte": "2021-01-01"}}]}}`,
			want:      "HAS DOXY eq true",
		},
		{
			name:      "unevidenced_dropped",
			clarified: "Retrieve floats measuring salinity.",
			raw:       `{"where": {"HAS PSAL": true, "VISITED BAY OF BENGAL": true}}`,
			want:      "HAS PSAL eq true",
		},
		{
			name:      "bare_object",
			clarified: "Retrieve floats measuring temperature.",
			raw:       `{"HAS TEMP": true}`,
			want:      "HAS TEMP eq true",
		},
		{
			name:      "not_json",
			clarified: "Retrieve floats.",
			raw:       `none`,
			want:      "<empty>",
		},
		{
			name:      "nothing_allowed",
			clarified: "Retrieve floats.",
			raw:       `{"where": {"PLATFORM_TYPE": "APEX"}}`,
			want:      "<empty>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newScriptedLLM(map[stage]string{stageFilter: tt.raw})
			b := NewFilterBuilder(llm, testPolicy(), testLogger(t))

			got, err := b.Build(context.Background(), tt.clarified)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			for _, attr := range got.Attributes() {
				assert.NotContains(t, attr, "DATE")
			}
		})
	}
}

func TestDecideGranularity(t *testing.T) {
	no := flexBool{Set: true, Value: false}
	yes := flexBool{Set: true, Value: true}

	tests := []struct {
		name string
		out  generatorOutput
		want Granularity
	}{
		{name: "explicit_raw", out: generatorOutput{Granularity: "raw"}, want: GranularityRaw},
		{name: "explicit_aggregated", out: generatorOutput{Granularity: "Aggregated"}, want: GranularityAggregated},
		{name: "small_without_aggregation", out: generatorOutput{DataSize: "small", AggregationUsed: no}, want: GranularityRaw},
		{name: "small_with_aggregation", out: generatorOutput{DataSize: "small", AggregationUsed: yes}, want: GranularityAggregated},
		{name: "small_unknown_aggregation", out: generatorOutput{DataSize: "small"}, want: GranularityAggregated},
		{name: "large", out: generatorOutput{DataSize: "large", AggregationUsed: no}, want: GranularityAggregated},
		{name: "missing", out: generatorOutput{}, want: GranularityAggregated},
		{name: "nonsense", out: generatorOutput{Granularity: "medium"}, want: GranularityAggregated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideGranularity(tt.out))
		})
	}
}

func TestQueryGeneratorGenerate(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		err        error
		wantErr    bool
		wantStmt   string
		wantNote   string
		wantPlot   bool
		wantGranul Granularity
	}{
		{
			name:       "sql_field",
			raw:        `{"sql": "SELECT * FROM argo_data_clean LIMIT 10;", "granularity": "raw", "suggest_plot": false, "sources_to_cite": ["Argo GDAC", "INCOIS"]}`,
			wantStmt:   "SELECT * FROM argo_data_clean LIMIT 10",
			wantNote:   "Argo GDAC; INCOIS",
			wantGranul: GranularityRaw,
		},
		{
			name:       "sql_query_field",
			raw:        `{"sql_query": "SELECT AVG(\"temp_adj_c\") FROM argo_data_clean", "data_size": "large", "suggest_plot": "True", "citation_note": "Argo"}`,
			wantStmt:   `SELECT AVG("temp_adj_c") FROM argo_data_clean`,
			wantNote:   "Argo",
			wantPlot:   true,
			wantGranul: GranularityAggregated,
		},
		{name: "invalid_json", raw: `SELECT * FROM argo_data_clean`, wantErr: true},
		{name: "missing_sql", raw: `{"granularity": "raw"}`, wantErr: true},
		{name: "other_table", raw: `{"sql": "SELECT * FROM conversation_turns"}`, wantErr: true},
		{name: "permanent_error", err: apperrors.Permanent(errors.New("422")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newScriptedLLM(map[stage]string{stageGenerate: tt.raw})
			if tt.err != nil {
				llm.errs[stageGenerate] = tt.err
			}
			g := NewQueryGenerator(llm, "argo_data_clean", testPolicy(), testLogger(t))

			got, err := g.Generate(context.Background(), "Retrieve floats.", nil)
			if tt.wantErr {
				var genErr *GenerationError
				require.ErrorAs(t, err, &genErr)
				assert.True(t, apperrors.IsQueryGenerationFailed(err))
				assert.False(t, apperrors.IsServiceUnavailable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStmt, got.Statement)
			assert.Equal(t, tt.wantGranul, got.Granularity)
			assert.Equal(t, tt.wantPlot, got.PlotSuggested)
			require.NotNil(t, got.CitationNote)
			assert.Equal(t, tt.wantNote, *got.CitationNote)
		})
	}
}

func TestQueryGeneratorUnavailableIsNotGenerationError(t *testing.T) {
	llm := newScriptedLLM(nil)
	llm.errs[stageGenerate] = errTransient
	g := NewQueryGenerator(llm, "argo_data_clean", testPolicy(), testLogger(t))

	_, err := g.Generate(context.Background(), "Retrieve floats.", nil)
	assert.True(t, apperrors.IsServiceUnavailable(err))
	var genErr *GenerationError
	assert.False(t, errors.As(err, &genErr))
}

func TestGeneratorRequestCapsCandidates(t *testing.T) {
	ids := make([]int64, 150)
	for i := range ids {
		ids[i] = int64(1000 + i)
	}
	msg := generatorRequest("Retrieve floats.", ids)
	assert.Contains(t, msg, "1000, 1001")
	assert.Contains(t, msg, "1099")
	assert.NotContains(t, msg, "1100")

	assert.Equal(t, "Retrieve floats.", generatorRequest("Retrieve floats.", nil))
}

func TestSynthesizer(t *testing.T) {
	note := "Argo GDAC"

	t.Run("empty_dataset_skips_model", func(t *testing.T) {
		llm := newScriptedLLM(nil)
		s := NewSynthesizer(llm, nil, testPolicy(), 0, 200, 600, testLogger(t))

		got, err := s.Synthesize(context.Background(), "q", database.Dataset{Columns: []string{"a"}}, nil, &note, "en")
		require.NoError(t, err)
		assert.Equal(t, CannotAnswerMessage, got.Text)
		assert.False(t, got.Degraded)
		assert.Equal(t, 0, llm.total)
	})

	t.Run("structured_answer", func(t *testing.T) {
		llm := newScriptedLLM(map[stage]string{stageSynth: `{"answer": "It warmed.", "plot_type": "None"}`})
		s := NewSynthesizer(llm, nil, testPolicy(), 0, 200, 600, testLogger(t))

		got, err := s.Synthesize(context.Background(), "q", sampleDataset(), nil, &note, "en")
		require.NoError(t, err)
		assert.Equal(t, "It warmed.", got.Text)
		assert.Nil(t, got.Plot)
		assert.Equal(t, &note, got.CitationNote)
		assert.Contains(t, llm.lastUser[stageSynth], "Sources to cite: Argo GDAC")
		assert.Contains(t, llm.lastUser[stageSynth], `"avg_temp_c":29.1`)
	})

	t.Run("raw_text_is_degraded", func(t *testing.T) {
		llm := newScriptedLLM(map[stage]string{stageSynth: "It warmed a little."})
		s := NewSynthesizer(llm, nil, testPolicy(), 0, 200, 600, testLogger(t))

		got, err := s.Synthesize(context.Background(), "q", sampleDataset(), nil, nil, "en")
		require.NoError(t, err)
		assert.Equal(t, "It warmed a little.", got.Text)
		assert.True(t, got.Degraded)
	})

	t.Run("permanent_error_falls_back", func(t *testing.T) {
		llm := newScriptedLLM(nil)
		llm.errs[stageSynth] = apperrors.Permanent(errors.New("400"))
		s := NewSynthesizer(llm, nil, testPolicy(), 0, 200, 600, testLogger(t))

		got, err := s.Synthesize(context.Background(), "q", sampleDataset(), nil, nil, "en")
		require.NoError(t, err)
		assert.True(t, got.Degraded)
		assert.Contains(t, got.Text, "3 row(s)")
	})

	t.Run("unavailable", func(t *testing.T) {
		llm := newScriptedLLM(nil)
		llm.errs[stageSynth] = errTransient
		s := NewSynthesizer(llm, nil, testPolicy(), 0, 200, 600, testLogger(t))

		_, err := s.Synthesize(context.Background(), "q", sampleDataset(), nil, nil, "en")
		assert.True(t, apperrors.IsServiceUnavailable(err))
	})
}

func TestSynthesizerFitsTokenBudget(t *testing.T) {
	rows := make([][]any, 64)
	for i := range rows {
		rows[i] = []any{int64(i), 20.0 + float64(i)/10}
	}
	ds := database.Dataset{Columns: []string{"profile", "temp_adj_c"}, Rows: rows}

	tests := []struct {
		name     string
		budget   int
		maxRows  int
		wantRows int
	}{
		{name: "fits", budget: 1000, maxRows: 200, wantRows: 64},
		{name: "halved_twice", budget: 16, maxRows: 200, wantRows: 16},
		{name: "row_cap_first", budget: 1000, maxRows: 10, wantRows: 10},
		{name: "no_budget", budget: 0, maxRows: 200, wantRows: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(nil, &stubTokens{perRow: 1}, testPolicy(), tt.budget, tt.maxRows, 600, testLogger(t))
			payload, n := s.fitRows(context.Background(), ds)
			assert.Equal(t, tt.wantRows, n)
			assert.Equal(t, tt.wantRows, strings.Count(payload, "{"))
		})
	}
}
