package handlers

import (
	"context"
	"net/http"

	"floatchat/agent"
	"floatchat/web/middleware"
	"floatchat/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionStore is the conversation state behind a session.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) *agent.Conversation
	Reset(ctx context.Context, sessionID string) error
}

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SessionHandler struct {
	store  SessionStore
	logger *zap.Logger
}

func NewSessionHandler(store SessionStore, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// Get handles GET /api/session.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	conv := h.store.Get(c.Request.Context(), sessionID)
	c.JSON(http.StatusOK, types.SessionResponse{
		Session:  sessionID,
		Greeting: agent.GreetingMessage,
		Turns:    conv.Len(),
	})
}

// Delete handles DELETE /api/session.
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if err := h.store.Reset(c.Request.Context(), sessionID); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Failed to clear the conversation", h.logger,
			zap.String("session_id", sessionID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionID, "cleared": true})
}

// Health handles GET /healthz.
func Health(db Pinger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.Ping(c.Request.Context()); err != nil {
				logger.Warn("Health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
