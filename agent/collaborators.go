package agent

import (
	"context"
	"time"

	"floatchat/database"
	"floatchat/filter"
	"floatchat/llmclient"
	"floatchat/vectorindex"
	"floatchat/web/types"
)

// Completer is the language completion service.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []types.AgentMessage, format llmclient.ResponseFormat) (string, error)
}

// SimilarityIndex ranks float documents against a question.
type SimilarityIndex interface {
	Search(ctx context.Context, text string, expr filter.Expression) ([]vectorindex.Candidate, error)
}

// DataEngine executes read-only structured queries.
type DataEngine interface {
	Execute(ctx context.Context, statement string) (database.Dataset, error)
}

// TokenCounter measures prompt size with the model's tokenizer.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// Clock supplies the ground-truth current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
