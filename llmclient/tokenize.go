package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "floatchat/errors"
)

// TokenizeRequest represents the payload for a /tokenize call
type TokenizeRequest struct {
	Content string `json:"content"`
}

// TokenizeResponse represents the response from a /tokenize call
type TokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// Tokenize requests tokenization for text at the given host and returns the token count.
func (c *Client) Tokenize(ctx context.Context, host string, text string) (int, error) {
	jsonBody, err := json.Marshal(TokenizeRequest{Content: text})
	if err != nil {
		return 0, fmt.Errorf("marshal tokenize request: %w", err)
	}

	url := fmt.Sprintf("%s/tokenize", strings.TrimRight(host, "/"))
	bodyBytes, err := c.post(ctx, url, jsonBody)
	if err != nil {
		return 0, err
	}

	var tr TokenizeResponse
	if err := json.Unmarshal(bodyBytes, &tr); err != nil {
		return 0, fmt.Errorf("decode tokenize response: %w: %v", apperrors.ErrLLMCommunication, err)
	}
	return len(tr.Tokens), nil
}

// CountTokens counts tokens with the main model's tokenizer.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	return c.Tokenize(ctx, c.cfg.MainLLMHost, text)
}
