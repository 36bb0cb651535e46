// Package vectorindex stores float summary documents with their embeddings in
// Postgres (pgvector) and answers filtered nearest-neighbour searches.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"floatchat/config"
	apperrors "floatchat/errors"
	"floatchat/filter"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Candidate is one ranked search hit.
type Candidate struct {
	FloatID int64
	Score   float64
}

type Index struct {
	db           *sql.DB
	embedder     Embedder
	cache        *lru.Cache
	dimensions   int
	topK         int
	filteredTopK int
	logger       *zap.Logger
}

func New(cfg *config.Config, db *sql.DB, embedder Embedder, logger *zap.Logger) (*Index, error) {
	size := cfg.EmbeddingCacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Index{
		db:           db,
		embedder:     embedder,
		cache:        cache,
		dimensions:   cfg.EmbeddingDimensions,
		topK:         cfg.VectorTopK,
		filteredTopK: cfg.VectorFilteredTopK,
		logger:       logger,
	}, nil
}

// EnsureSchema creates the pgvector extension and the document table.
func (ix *Index) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS float_documents (
            float_id BIGINT PRIMARY KEY,
            content TEXT NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
            content_hash TEXT,
            embedding vector(%d) NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`, ix.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_float_documents_metadata ON float_documents USING GIN (metadata)`,
		`CREATE INDEX IF NOT EXISTS idx_float_documents_embedding ON float_documents USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := ix.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute vector schema statement: %w", err)
		}
	}
	return nil
}

// TopK returns how many candidates a search returns for the given filter.
// Filtered searches cast a wider net because the filter already narrows them.
func (ix *Index) TopK(expr filter.Expression) int {
	if expr.IsEmpty() {
		return ix.topK
	}
	return ix.filteredTopK
}

// Search ranks float documents by cosine similarity to text. The filter is
// applied before ranking; an empty filter searches everything.
func (ix *Index) Search(ctx context.Context, text string, expr filter.Expression) ([]Candidate, error) {
	vec, err := ix.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	where, args, err := Compile(expr, 2)
	if err != nil {
		return nil, apperrors.Permanent(fmt.Errorf("compile filter: %w", err))
	}
	limit := ix.TopK(expr)
	query := fmt.Sprintf(`
		SELECT float_id, 1 - (embedding <=> $1::vector) AS score
		FROM float_documents
		WHERE %s
		ORDER BY embedding <=> $1::vector
		LIMIT %d
	`, where, limit)

	queryArgs := append([]any{pgvector.NewVector(vec)}, args...)
	rows, err := ix.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query float_documents: %w: %v", apperrors.ErrDatabaseOperation, err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.FloatID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan float_documents row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate float_documents rows: %w: %v", apperrors.ErrDatabaseOperation, err)
	}

	ix.logger.Debug("Similarity search completed",
		zap.String("filter", expr.String()),
		zap.Int("limit", limit),
		zap.Int("float_count", len(candidates)))
	return candidates, nil
}

func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := ix.cache.Get(text); ok {
		return cached.([]float32), nil
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed search text: %w", err)
	}
	ix.cache.Add(text, vec)
	return vec, nil
}

// Upsert embeds and stores one summary. Unchanged documents are skipped.
// It reports whether the stored row changed.
func (ix *Index) Upsert(ctx context.Context, summary FloatSummary) (bool, error) {
	hash := summary.ContentHash()

	var existing sql.NullString
	err := ix.db.QueryRowContext(ctx, `SELECT content_hash FROM float_documents WHERE float_id = $1`, summary.FloatID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("lookup float document %d: %w", summary.FloatID, err)
	}
	if existing.Valid && existing.String == hash {
		return false, nil
	}

	content := summary.Document()
	vec, err := ix.embedder.Embed(ctx, content)
	if err != nil {
		return false, fmt.Errorf("embed float %d: %w", summary.FloatID, err)
	}
	metaJSON, err := json.Marshal(summary.Metadata())
	if err != nil {
		return false, fmt.Errorf("marshal metadata for float %d: %w", summary.FloatID, err)
	}

	query := `
		INSERT INTO float_documents (float_id, content, metadata, content_hash, embedding, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5::vector, NOW())
		ON CONFLICT (float_id)
		DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			content_hash = EXCLUDED.content_hash, embedding = EXCLUDED.embedding, updated_at = NOW()
	`
	if _, err := ix.db.ExecContext(ctx, query, summary.FloatID, content, string(metaJSON), hash, pgvector.NewVector(vec)); err != nil {
		return false, fmt.Errorf("upsert float document %d: %w", summary.FloatID, err)
	}
	return true, nil
}

// LoadSummaries reads a JSON array of summaries from path and upserts them.
// Individual failures are logged and skipped.
func (ix *Index) LoadSummaries(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read float summaries: %w", err)
	}
	var summaries []FloatSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return fmt.Errorf("decode float summaries: %w", err)
	}

	start := time.Now()
	updated, failed := 0, 0
	for _, s := range summaries {
		changed, err := ix.Upsert(ctx, s)
		if err != nil {
			failed++
			ix.logger.Warn("Failed to index float summary, continuing",
				zap.Int64("float_id", s.FloatID),
				zap.Error(err))
			continue
		}
		if changed {
			updated++
		}
	}

	ix.logger.Info("Float summaries loaded",
		zap.String("path", path),
		zap.Int("total", len(summaries)),
		zap.Int("updated", updated),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
