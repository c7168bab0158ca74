package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/ports"
)

// CohereClient implements ports.ChatClient with the Cohere chat API.
type CohereClient struct {
	client      *cohereclient.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ ports.ChatClient = (*CohereClient)(nil)

// NewCohereClient builds a client from configuration.
func NewCohereClient(cfg config.CohereConfig) *CohereClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		cohereclient.WithToken(cfg.APIKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cohereclient.WithBaseURL(cfg.BaseURL))
	}
	client := cohereclient.NewClient(opts...)
	return &CohereClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends prompt as a single chat turn and returns the reply text.
func (c *CohereClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("cohere client is nil")
	}

	req := &cohere.ChatRequest{
		Message:  prompt,
		Preamble: stringPtr(defaultSystemPrompt),
	}
	if c.model != "" {
		req.Model = stringPtr(c.model)
	}
	if c.temperature > 0 {
		req.Temperature = &c.temperature
	}
	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}

	resp, err := c.client.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cohere chat: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("cohere chat returned no text")
	}
	return resp.Text, nil
}

func stringPtr(s string) *string { return &s }
