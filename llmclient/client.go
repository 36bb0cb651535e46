package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"floatchat/config"
	apperrors "floatchat/errors"
	"floatchat/web/types"

	"go.uber.org/zap"
)

// ErrContextWindowExceeded is returned when the model reports the prompt
// exceeds the available context size.
var ErrContextWindowExceeded = errors.New("context window exceeded")

// ResponseFormat selects between free text and JSON-object completions.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json_object"
)

// ChatOptions tweaks a single completion call.
type ChatOptions struct {
	Temperature *float64
	Format      ResponseFormat
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string               `json:"model,omitempty"`
	Messages       []types.AgentMessage `json:"messages"`
	Stream         bool                 `json:"stream"`
	Temperature    *float64             `json:"temperature,omitempty"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message types.AgentMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMRequestTimeout},
		logger:     logger,
	}
}

// Complete sends a system prompt plus conversation turns to the main model.
// It makes exactly one attempt; callers own the retry policy.
func (c *Client) Complete(ctx context.Context, systemPrompt string, turns []types.AgentMessage, format ResponseFormat) (string, error) {
	messages := make([]types.AgentMessage, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, types.AgentMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, turns...)
	temperature := c.cfg.LLMTemperature
	return c.Chat(ctx, c.cfg.MainLLMHost, messages, ChatOptions{Format: format, Temperature: &temperature})
}

// Chat performs a single non-streaming chat completion call.
// Failures a retry cannot fix are marked permanent.
func (c *Client) Chat(ctx context.Context, host string, messages []types.AgentMessage, opts ChatOptions) (string, error) {
	reqBody := chatRequest{
		Model:       c.cfg.LLMModel,
		Messages:    messages,
		Stream:      false,
		Temperature: opts.Temperature,
	}
	if opts.Format == FormatJSON {
		reqBody.ResponseFormat = &responseFormat{Type: string(FormatJSON)}
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperrors.Permanent(fmt.Errorf("marshal chat request: %w", err))
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(host, "/"))
	bodyBytes, err := c.post(ctx, url, jsonBody)
	if err != nil {
		if strings.Contains(err.Error(), "exceeds the available context size") {
			return "", apperrors.Permanent(fmt.Errorf("%w: %v", ErrContextWindowExceeded, err))
		}
		return "", err
	}

	var cr chatResponse
	if err := json.Unmarshal(bodyBytes, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w: %v", apperrors.ErrLLMCommunication, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no response choices from llm server: %w", apperrors.ErrLLMCommunication)
	}
	return cr.Choices[0].Message.Content, nil
}

// Embed generates an embedding vector for the provided text using the
// OpenAI-compatible embeddings endpoint.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{Model: c.cfg.EmbeddingModel, Input: text}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperrors.Permanent(fmt.Errorf("marshal embedding request: %w", err))
	}

	url := fmt.Sprintf("%s/v1/embeddings", strings.TrimRight(c.cfg.EmbeddingLLMHost, "/"))
	bodyBytes, err := c.post(ctx, url, jsonBody)
	if err != nil {
		return nil, err
	}

	var er embeddingResponse
	if err := json.Unmarshal(bodyBytes, &er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w: %v", apperrors.ErrLLMCommunication, err)
	}
	if len(er.Data) == 0 || len(er.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response was empty: %w", apperrors.ErrLLMCommunication)
	}
	return er.Data[0].Embedding, nil
}

// post sends one JSON request and returns the body of a 200 response.
func (c *Client) post(ctx context.Context, url string, jsonBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, apperrors.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.LLMAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("send request to %s: %w: %v", url, apperrors.ErrLLMCommunication, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %v", apperrors.ErrLLMCommunication, err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("llm server status %s: %s: %w", resp.Status, strings.TrimSpace(string(bodyBytes)), apperrors.ErrLLMCommunication)
		if isRetryableStatus(resp.StatusCode) {
			c.logger.Warn("LLM server returned retryable status",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode))
			return nil, statusErr
		}
		return nil, apperrors.Permanent(statusErr)
	}
	return bodyBytes, nil
}

// isRetryableStatus covers model loading (503), throttling and gateway errors.
func isRetryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
