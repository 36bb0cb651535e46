package agent

import (
	"context"
	"sync"
	"time"

	"floatchat/database"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Turn is one completed question and answer pair.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// Conversation is the ordered history of one session.
type Conversation struct {
	mu        sync.Mutex
	sessionID string
	turns     []Turn
}

// Snapshot returns a copy of the turns, oldest first.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of completed turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

func (c *Conversation) append(t Turn, max int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	if max > 0 && len(c.turns) > max {
		c.turns = append([]Turn(nil), c.turns[len(c.turns)-max:]...)
	}
}

// TurnArchive persists turns beyond the in-memory lifetime of a session.
type TurnArchive interface {
	AppendTurn(ctx context.Context, turn database.TurnRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]database.TurnRecord, error)
	DeleteSessionTurns(ctx context.Context, sessionID string) (int64, error)
}

// ConversationStore keeps one Conversation per session. Entries expire after
// a period of inactivity; every access slides the expiry forward.
type ConversationStore struct {
	cache    *cache.Cache
	idle     time.Duration
	maxTurns int
	archive  TurnArchive
	logger   *zap.Logger

	// serialises get-or-create so a session never gets two conversations
	mu sync.Mutex
}

// NewConversationStore creates the store. archive may be nil.
func NewConversationStore(idle, sweep time.Duration, maxTurns int, archive TurnArchive, logger *zap.Logger) *ConversationStore {
	c := cache.New(idle, sweep)
	c.OnEvicted(func(key string, _ interface{}) {
		logger.Debug("Conversation evicted after inactivity", zap.String("session_id", key))
	})
	return &ConversationStore{
		cache:    c,
		idle:     idle,
		maxTurns: maxTurns,
		archive:  archive,
		logger:   logger,
	}
}

// Get returns the session's conversation, creating it on first use. A
// session that was evicted is rebuilt from the archive.
func (s *ConversationStore) Get(ctx context.Context, sessionID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(sessionID); ok {
		conv := v.(*Conversation)
		s.cache.Set(sessionID, conv, cache.DefaultExpiration)
		return conv
	}

	conv := &Conversation{sessionID: sessionID}
	if s.archive != nil {
		records, err := s.archive.RecentTurns(ctx, sessionID, s.maxTurns)
		if err != nil {
			s.logger.Warn("Could not rehydrate conversation",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		for _, r := range records {
			conv.turns = append(conv.turns, Turn{Question: r.Question, Answer: r.Answer, At: r.CreatedAt})
		}
		if len(records) > 0 {
			s.logger.Debug("Conversation rehydrated from archive",
				zap.String("session_id", sessionID), zap.Int("turns", len(records)))
		}
	}
	s.cache.Set(sessionID, conv, cache.DefaultExpiration)
	return conv
}

// Append records a completed turn in memory and, when configured, in the archive.
func (s *ConversationStore) Append(ctx context.Context, sessionID string, turn Turn, outcome Outcome, degraded bool) {
	conv := s.Get(ctx, sessionID)
	conv.append(turn, s.maxTurns)

	if s.archive == nil {
		return
	}
	record := database.TurnRecord{
		SessionID: sessionID,
		Question:  turn.Question,
		Answer:    turn.Answer,
		Outcome:   string(outcome),
		Degraded:  degraded,
		CreatedAt: turn.At,
	}
	if err := s.archive.AppendTurn(ctx, record); err != nil {
		s.logger.Warn("Failed to archive turn", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Reset forgets the session, in memory and in the archive.
func (s *ConversationStore) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	s.cache.Delete(sessionID)
	s.mu.Unlock()

	if s.archive == nil {
		return nil
	}
	n, err := s.archive.DeleteSessionTurns(ctx, sessionID)
	if err != nil {
		return err
	}
	s.logger.Info("Conversation reset", zap.String("session_id", sessionID), zap.Int64("archived_turns_deleted", n))
	return nil
}

// Sessions returns the number of live conversations.
func (s *ConversationStore) Sessions() int {
	return s.cache.ItemCount()
}
