package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"floatchat/config"
	"floatchat/database"
	"floatchat/filter"
	"floatchat/llmclient"
	"floatchat/prompts"
	"floatchat/vectorindex"
	"floatchat/web/types"

	"go.uber.org/zap"
)

type stage string

const (
	stageRewrite  stage = "rewrite"
	stageClassify stage = "classify"
	stageFilter   stage = "filter"
	stageGenerate stage = "generate"
	stageSynth    stage = "synthesize"
)

var errTransient = errors.New("connection refused")

// scriptedLLM answers by pipeline stage, recognised from the system prompt.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[stage]string
	errs      map[stage]error
	failAll   error
	calls     map[stage]int
	systems   map[stage]string
	lastUser  map[stage]string
	turns     map[stage][]types.AgentMessage
	total     int
}

func newScriptedLLM(responses map[stage]string) *scriptedLLM {
	return &scriptedLLM{
		responses: responses,
		errs:      map[stage]error{},
		calls:     map[stage]int{},
		systems:   map[stage]string{},
		lastUser:  map[stage]string{},
		turns:     map[stage][]types.AgentMessage{},
	}
}

func stageOf(system string) stage {
	switch {
	case strings.HasPrefix(system, "You are the query rewriting stage"):
		return stageRewrite
	case system == prompts.Classifier():
		return stageClassify
	case system == prompts.Filters():
		return stageFilter
	case strings.HasPrefix(system, "You write one read-only PostgreSQL query"):
		return stageGenerate
	default:
		return stageSynth
	}
}

func (s *scriptedLLM) Complete(_ context.Context, system string, turns []types.AgentMessage, _ llmclient.ResponseFormat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := stageOf(system)
	s.total++
	s.calls[st]++
	s.systems[st] = system
	s.turns[st] = turns
	if len(turns) > 0 {
		s.lastUser[st] = turns[len(turns)-1].Content
	}
	if s.failAll != nil {
		return "", s.failAll
	}
	if err := s.errs[st]; err != nil {
		return "", err
	}
	return s.responses[st], nil
}

func (s *scriptedLLM) callCount(st stage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[st]
}

type stubIndex struct {
	hits    []vectorindex.Candidate
	err     error
	calls   int
	filters []filter.Expression
}

func (s *stubIndex) Search(_ context.Context, _ string, expr filter.Expression) ([]vectorindex.Candidate, error) {
	s.calls++
	s.filters = append(s.filters, expr)
	return s.hits, s.err
}

type stubEngine struct {
	dataset    database.Dataset
	err        error
	calls      int
	statements []string
}

func (s *stubEngine) Execute(_ context.Context, statement string) (database.Dataset, error) {
	s.calls++
	s.statements = append(s.statements, statement)
	return s.dataset, s.err
}

type stubTokens struct {
	perRow int
	calls  int
}

func (s *stubTokens) CountTokens(_ context.Context, text string) (int, error) {
	s.calls++
	// one token per rendered row object
	return strings.Count(text, "{") * s.perRow, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 9, 14, 10, 30, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		DataTable:          "argo_data_clean",
		Timezone:           "UTC",
		MaxRetries:         3,
		RetryDelaySeconds:  time.Millisecond,
		HistoryMaxTurns:    10,
		HistoryAnswerChars: 600,
		MaxDatasetRows:     200,
	}
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger
}

type harness struct {
	agent  *Agent
	llm    *scriptedLLM
	index  *stubIndex
	engine *stubEngine
	store  *ConversationStore
}

func newHarness(t *testing.T, llm *scriptedLLM) *harness {
	t.Helper()
	logger := testLogger(t)
	h := &harness{
		llm:    llm,
		index:  &stubIndex{},
		engine: &stubEngine{},
		store:  NewConversationStore(time.Minute, time.Minute, 10, nil, logger),
	}
	h.agent = NewAgent(testConfig(), llm, nil, h.index, h.engine, h.store, fixedClock{testNow}, logger)
	return h
}

func sampleDataset() database.Dataset {
	return database.Dataset{
		Columns: []string{"month", "avg_temp_c"},
		Rows: [][]any{
			{"2023-03", 28.4},
			{"2023-04", 29.1},
			{"2023-05", 29.6},
		},
	}
}
