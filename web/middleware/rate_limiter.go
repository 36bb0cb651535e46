package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"floatchat/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MessagesPerMinute int           // Max questions per session per minute
	BurstSize         int           // Allow burst of N requests
	IdleTimeout       time.Duration // Buckets unused this long are dropped
	CleanupInterval   time.Duration // How often to clean up old entries
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can proceed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	// Refill tokens based on elapsed time
	tb.tokens = min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Remaining returns the number of tokens remaining
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := time.Since(tb.lastRefill).Seconds()
	return int(min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate)))
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// SessionRateLimiter manages rate limits per session
type SessionRateLimiter struct {
	config      RateLimiterConfig
	buckets     map[string]*TokenBucket
	mu          sync.Mutex
	logger      *zap.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewSessionRateLimiter creates a new session-based rate limiter
func NewSessionRateLimiter(config RateLimiterConfig, logger *zap.Logger) *SessionRateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = max(config.MessagesPerMinute, 1)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	limiter := &SessionRateLimiter{
		config:      config,
		buckets:     make(map[string]*TokenBucket),
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go limiter.cleanupRoutine()

	return limiter
}

func (srl *SessionRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(srl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			srl.cleanup(time.Now())
		case <-srl.stopCleanup:
			return
		}
	}
}

// cleanup drops buckets idle for longer than IdleTimeout. A dropped bucket
// is recreated full, which is what an idle session would have refilled to.
func (srl *SessionRateLimiter) cleanup(now time.Time) {
	srl.mu.Lock()
	defer srl.mu.Unlock()

	removed := 0
	for id, b := range srl.buckets {
		if now.Sub(b.idleSince()) > srl.config.IdleTimeout {
			delete(srl.buckets, id)
			removed++
		}
	}
	if removed > 0 {
		srl.logger.Debug("Rate limiter buckets dropped", zap.Int("removed", removed), zap.Int("remaining", len(srl.buckets)))
	}
}

// Stop stops the cleanup routine
func (srl *SessionRateLimiter) Stop() {
	srl.stopOnce.Do(func() { close(srl.stopCleanup) })
}

func (srl *SessionRateLimiter) bucket(sessionID string) *TokenBucket {
	srl.mu.Lock()
	defer srl.mu.Unlock()

	b, ok := srl.buckets[sessionID]
	if !ok {
		refillRate := float64(srl.config.MessagesPerMinute) / 60.0
		b = NewTokenBucket(float64(srl.config.BurstSize), refillRate)
		srl.buckets[sessionID] = b
	}
	return b
}

// Allow checks if a question can be sent for the given session
func (srl *SessionRateLimiter) Allow(sessionID string) bool {
	return srl.bucket(sessionID).Allow()
}

// Remaining returns remaining tokens and the burst limit for a session
func (srl *SessionRateLimiter) Remaining(sessionID string) (remaining int, limit int) {
	return srl.bucket(sessionID).Remaining(), srl.config.BurstSize
}

// RateLimitMiddleware creates a Gin middleware for rate limiting. It must run
// after SessionMiddleware.
func RateLimitMiddleware(limiter *SessionRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := SessionID(c)
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, types.QueryResponse{
				Type:     types.OutputText,
				Message:  "session not initialized",
				Degraded: true,
				Status:   "internal_error",
			})
			return
		}

		allowed := limiter.Allow(sessionID)
		remaining, limit := limiter.Remaining(sessionID)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			if zapLogger, ok := c.Value("logger").(*zap.Logger); ok && zapLogger != nil {
				zapLogger.Warn("Rate limit exceeded",
					zap.String("session_id", sessionID),
					zap.Int("limit", limit))
			}

			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.QueryResponse{
				Type:     types.OutputText,
				Message:  "Too many questions in a short time. Please wait a minute and try again.",
				Degraded: true,
				Status:   "rate_limited",
				Session:  sessionID,
			})
			return
		}

		c.Next()
	}
}
