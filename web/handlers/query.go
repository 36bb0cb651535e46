package handlers

import (
	"context"
	"net/http"
	"strings"

	"floatchat/agent"
	"floatchat/database"
	"floatchat/utils"
	"floatchat/web/format"
	"floatchat/web/middleware"
	"floatchat/web/types"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Answerer runs a question through the pipeline.
type Answerer interface {
	Answer(ctx context.Context, req agent.Request) agent.Result
}

// ArtifactWriter stores datasets for download.
type ArtifactWriter interface {
	WriteCSV(ctx context.Context, sessionID, label string, ds database.Dataset) (string, error)
	URL(name string) string
}

type QueryHandler struct {
	agent       Answerer
	artifacts   ArtifactWriter
	previewRows int
	logger      *zap.Logger
}

// NewQueryHandler creates the query handler. artifacts may be nil.
func NewQueryHandler(agent Answerer, artifacts ArtifactWriter, previewRows int, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		agent:       agent,
		artifacts:   artifacts,
		previewRows: previewRows,
		logger:      logger,
	}
}

// Query handles POST /api/query.
func (h *QueryHandler) Query(c *gin.Context) {
	var req types.QueryRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "request body must be JSON with a non-empty question")
		return
	}
	if err := utils.ValidateQuestion(req.Question); err != nil {
		respondWithClientError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !format.ValidMode(req.OutputMode) {
		respondWithClientError(c, http.StatusBadRequest, "output_mode must be one of text, table, plot")
		return
	}
	mode := format.NormalizeMode(req.OutputMode)

	sessionID := middleware.SessionID(c)
	if s := strings.TrimSpace(req.Session); s != "" {
		if !utils.ValidSessionID(s) {
			respondWithClientError(c, http.StatusBadRequest, "invalid session")
			return
		}
		sessionID = s
	}
	requestID := utils.GenerateRequestID()
	logger := h.logger.With(zap.String("request_id", requestID), zap.String("session_id", sessionID))

	logger.Info("Query received",
		zap.String("output_mode", mode),
		zap.String("language", req.Language),
		zap.Int("question_length", len(req.Question)))

	ctx := c.Request.Context()
	res := h.agent.Answer(ctx, agent.Request{
		SessionID: sessionID,
		Question:  req.Question,
		Language:  req.Language,
	})

	resp := format.Package(res, mode, h.previewRows)
	resp.Session = sessionID
	resp.RequestID = requestID

	if h.artifacts != nil && format.NeedsArtifact(res, mode) {
		name, err := h.artifacts.WriteCSV(ctx, sessionID, "argo_data", res.Dataset)
		if err != nil {
			logger.Warn("Failed to write artifact", zap.Error(err))
		} else {
			if resp.Artifact == nil {
				resp.Artifact = &types.Artifact{Kind: "csv"}
			}
			resp.Artifact.URL = h.artifacts.URL(name)
		}
	}

	c.JSON(statusFor(res.Outcome), resp)
}

func statusFor(outcome agent.Outcome) int {
	switch outcome {
	case agent.OutcomeServiceUnavailable:
		return http.StatusServiceUnavailable
	case agent.OutcomeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
