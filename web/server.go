package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"floatchat/agent"
	"floatchat/config"
	"floatchat/web/handlers"
	"floatchat/web/middleware"
	"floatchat/web/services"
	"floatchat/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP surface needs.
type Dependencies struct {
	Agent     handlers.Answerer
	Sessions  handlers.SessionStore
	Artifacts *services.ArtifactService
	Health    handlers.Pinger
}

type Server struct {
	router  *gin.Engine
	deps    Dependencies
	limiter *middleware.SessionRateLimiter
	logger  *zap.Logger
	config  *config.Config
}

func NewServer(deps Dependencies, logger *zap.Logger, config *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic while handling request",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, types.QueryResponse{
			Type:     types.OutputText,
			Message:  agent.InternalErrorMessage,
			Degraded: true,
			Status:   string(agent.OutcomeInternalError),
		})
	}))
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})
	router.Use(requestLogger(logger))

	server := &Server{
		router: router,
		deps:   deps,
		logger: logger,
		config: config,
	}
	if config.RateLimitMessagesPerMin > 0 {
		server.limiter = middleware.NewSessionRateLimiter(middleware.RateLimiterConfig{
			MessagesPerMinute: config.RateLimitMessagesPerMin,
			BurstSize:         config.RateLimitBurstSize,
			IdleTimeout:       config.SessionIdleTimeout,
		}, logger)
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	if s.deps.Artifacts != nil {
		s.router.Static(strings.TrimSuffix(services.ArtifactURLPrefix, "/"), s.deps.Artifacts.Dir())
	}

	s.router.GET("/healthz", handlers.Health(s.deps.Health, s.logger))

	api := s.router.Group("/api", middleware.SessionMiddleware())

	var artifacts handlers.ArtifactWriter
	if s.deps.Artifacts != nil {
		artifacts = s.deps.Artifacts
	}
	queryHandler := handlers.NewQueryHandler(s.deps.Agent, artifacts, s.config.TablePreviewRows, s.logger)
	if s.limiter != nil {
		api.POST("/query", middleware.BodySessionMiddleware(), middleware.RateLimitMiddleware(s.limiter), queryHandler.Query)
	} else {
		api.POST("/query", middleware.BodySessionMiddleware(), queryHandler.Query)
	}

	sessionHandler := handlers.NewSessionHandler(s.deps.Sessions, s.logger)
	api.GET("/session", sessionHandler.Get)
	api.DELETE("/session", sessionHandler.Delete)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error("Web server failed to start", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down web server")
	if s.limiter != nil {
		s.limiter.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("HTTP request", fields...)
			return
		}
		logger.Debug("HTTP request", fields...)
	}
}
