package agent

import (
	"context"
	"strings"
	"time"

	"floatchat/config"
	"floatchat/database"
	apperrors "floatchat/errors"
	"floatchat/filter"
	"floatchat/vectorindex"

	"go.uber.org/zap"
)

// Request is one user question within a session.
type Request struct {
	SessionID string
	Question  string
	Language  string
}

// Result is everything the coordinator learned while answering a request.
type Result struct {
	Answer     FinalAnswer
	Outcome    Outcome
	States     []State
	Clarified  string
	Decision   RetrievalDecision
	Filter     filter.Expression
	Candidates []int64
	Query      *StructuredQuerySpec
	Dataset    database.Dataset
}

// Agent coordinates the stages that turn a question into an answer.
type Agent struct {
	rewriter      *Rewriter
	classifier    *Classifier
	filters       *FilterBuilder
	generator     *QueryGenerator
	synthesizer   *Synthesizer
	index         SimilarityIndex
	engine        DataEngine
	conversations *ConversationStore
	clock         Clock
	retry         RetryPolicy
	logger        *zap.Logger
}

// NewAgent wires the pipeline. tokens may be nil.
func NewAgent(cfg *config.Config, llm Completer, tokens TokenCounter, index SimilarityIndex, engine DataEngine, conversations *ConversationStore, clock Clock, logger *zap.Logger) *Agent {
	if clock == nil {
		clock = SystemClock{}
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("Unknown timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.UTC
	}
	policy := NewRetryPolicy(cfg)

	return &Agent{
		rewriter:      NewRewriter(llm, clock, loc, policy, cfg.HistoryAnswerChars, logger),
		classifier:    NewClassifier(llm, policy, logger),
		filters:       NewFilterBuilder(llm, policy, logger),
		generator:     NewQueryGenerator(llm, cfg.DataTable, policy, logger),
		synthesizer:   NewSynthesizer(llm, tokens, policy, cfg.DatasetTokenBudget, cfg.MaxDatasetRows, cfg.HistoryAnswerChars, logger),
		index:         index,
		engine:        engine,
		conversations: conversations,
		clock:         clock,
		retry:         policy,
		logger:        logger,
	}
}

// Conversations exposes the session store.
func (a *Agent) Conversations() *ConversationStore {
	return a.conversations
}

// run tracks a single request through the state machine.
type run struct {
	res      Result
	degraded bool
	logger   *zap.Logger
}

func (r *run) enter(s State) {
	r.res.States = append(r.res.States, s)
	r.logger.Debug("State transition", zap.String("state", string(s)))
}

// Answer runs the request to a terminal state. It always returns a usable
// answer; failures are expressed through Outcome and Answer.Degraded.
func (a *Agent) Answer(ctx context.Context, req Request) Result {
	r := &run{logger: a.logger.With(zap.String("session_id", req.SessionID))}
	r.enter(StateReceived)

	history := a.conversations.Get(ctx, req.SessionID).Snapshot()
	a.process(ctx, req, history, r)

	r.res.Answer.Degraded = r.res.Answer.Degraded || r.degraded
	// blank questions leave no trace in the conversation
	if question := strings.TrimSpace(req.Question); question != "" {
		a.conversations.Append(ctx, req.SessionID, Turn{
			Question: question,
			Answer:   r.res.Answer.Text,
			At:       a.clock.Now(),
		}, r.res.Outcome, r.res.Answer.Degraded)
	}

	r.logger.Info("Request completed",
		zap.String("outcome", string(r.res.Outcome)),
		zap.Bool("degraded", r.res.Answer.Degraded),
		zap.Strings("states", stateNames(r.res.States)),
		zap.Int("rows", r.res.Dataset.Len()))
	return r.res
}

func (a *Agent) process(ctx context.Context, req Request, history []Turn, r *run) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		r.enter(StateShortCircuit)
		r.res.Outcome = OutcomeShortCircuit
		r.res.Answer = FinalAnswer{Text: RewriteApologyMessage}
		return
	}

	rw, err := a.rewriter.Rewrite(ctx, question, req.Language, history)
	if err != nil {
		a.fail(r, "rewrite", err)
		return
	}
	switch rw.Kind {
	case RewriteShortCircuit:
		r.enter(StateShortCircuit)
		r.res.Outcome = OutcomeShortCircuit
		r.res.Answer = FinalAnswer{Text: rw.Text, Degraded: rw.Degraded}
		return
	case RewriteTheory:
		r.enter(StateTheory)
		r.res.Outcome = OutcomeTheory
		r.res.Answer = FinalAnswer{Text: rw.Text, Degraded: rw.Degraded}
		return
	}
	r.enter(StateClarified)
	r.res.Clarified = rw.Text

	decision, err := a.classifier.Classify(ctx, rw.Text)
	if err != nil {
		a.fail(r, "classify", err)
		return
	}
	r.res.Decision = decision

	if decision == StructuredOnly {
		r.enter(StateRouteStructured)
	} else {
		r.enter(StateRouteBoth)
		if !a.retrieveCandidates(ctx, rw.Text, r) {
			return
		}
	}

	plan, err := a.generator.Generate(ctx, rw.Text, r.res.Candidates)
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			a.fail(r, "generate_query", err)
			return
		}
		r.logger.Warn("Query generation failed", zap.Error(err))
		r.enter(StateGenFailed)
		r.res.Outcome = OutcomeGenerationFailed
		r.res.Answer = FinalAnswer{Text: GenerationFailedMessage, Degraded: true}
		return
	}
	r.enter(StateQueryReady)
	r.res.Query = &plan

	dataset, err := CallWithRetry(ctx, a.retry, r.logger, "execute_query", func(ctx context.Context) (database.Dataset, error) {
		return a.engine.Execute(ctx, plan.Statement)
	})
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			a.fail(r, "execute_query", err)
			return
		}
		r.logger.Warn("Query execution failed", zap.String("statement", plan.Statement), zap.Error(err))
		r.enter(StateExecFailed)
		r.res.Outcome = OutcomeExecutionFailed
		r.res.Answer = FinalAnswer{Text: ExecutionFailedMessage, Degraded: true}
		return
	}
	r.res.Dataset = dataset
	if dataset.Empty() {
		r.enter(StateDataEmpty)
	} else {
		r.enter(StateDataReady)
	}

	answer, err := a.synthesizer.Synthesize(ctx, rw.Text, dataset, history, plan.CitationNote, req.Language)
	if err != nil {
		a.fail(r, "synthesize", err)
		return
	}
	r.enter(StateDone)
	r.res.Answer = answer
	if dataset.Empty() {
		r.res.Outcome = OutcomeNoData
	} else {
		r.res.Outcome = OutcomeAnswered
	}
}

// retrieveCandidates runs the filter and similarity stages. It returns false
// when the request reached a terminal state.
func (a *Agent) retrieveCandidates(ctx context.Context, clarified string, r *run) bool {
	expr, err := a.filters.Build(ctx, clarified)
	if err != nil {
		a.fail(r, "filter", err)
		return false
	}
	r.enter(StateFiltered)
	r.res.Filter = expr

	hits, err := CallWithRetry(ctx, a.retry, r.logger, "similarity_search", func(ctx context.Context) ([]vectorindex.Candidate, error) {
		return a.index.Search(ctx, clarified, expr)
	})
	if err != nil {
		if apperrors.IsServiceUnavailable(err) {
			a.fail(r, "similarity_search", err)
			return false
		}
		r.logger.Warn("Similarity search failed, continuing without candidates", zap.Error(err))
		r.degraded = true
		hits = nil
	}

	if len(hits) == 0 {
		r.enter(StateCandidatesEmpty)
		return true
	}
	r.res.Candidates = make([]int64, len(hits))
	for i, h := range hits {
		r.res.Candidates[i] = h.FloatID
	}
	r.enter(StateCandidatesReady)
	return true
}

// fail moves the request to UNAVAILABLE or FAILED.
func (a *Agent) fail(r *run, stage string, err error) {
	if apperrors.IsServiceUnavailable(err) {
		r.enter(StateUnavailable)
		r.res.Outcome = OutcomeServiceUnavailable
		r.res.Answer = FinalAnswer{Text: ServiceUnavailableMessage, Degraded: true}
		return
	}
	r.logger.Error("Request failed", zap.String("stage", stage), zap.Error(err))
	r.enter(StateFailed)
	r.res.Outcome = OutcomeInternalError
	r.res.Answer = FinalAnswer{Text: InternalErrorMessage, Degraded: true}
}

func stateNames(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
