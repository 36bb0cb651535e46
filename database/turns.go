package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TurnRecord is one archived question/answer pair.
type TurnRecord struct {
	SessionID string
	Question  string
	Answer    string
	Outcome   string
	Degraded  bool
	CreatedAt time.Time
}

// AppendTurn archives a completed turn.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn TurnRecord) error {
	query := `
		INSERT INTO conversation_turns (id, session_id, question, answer, outcome, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, query, uuid.New(), turn.SessionID, turn.Question, turn.Answer, turn.Outcome, turn.Degraded, createdAt)
	if err != nil {
		return fmt.Errorf("failed to archive conversation turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit most recent turns of a session, oldest first.
func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	query := `
		SELECT session_id, question, answer, outcome, degraded, created_at FROM (
			SELECT session_id, question, answer, outcome, degraded, created_at
			FROM conversation_turns
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent ORDER BY created_at ASC
	`
	rows, err := s.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.SessionID, &t.Question, &t.Answer, &t.Outcome, &t.Degraded, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// DeleteSessionTurns removes the archive of one session.
func (s *PostgresStore) DeleteSessionTurns(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM conversation_turns WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete turns for session %s: %w", sessionID, err)
	}
	return result.RowsAffected()
}

// DeleteTurnsBefore removes archived turns older than cutoff.
func (s *PostgresStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM conversation_turns WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old conversation turns: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to determine turns deleted: %w", err)
	}
	return rowsAffected, nil
}
