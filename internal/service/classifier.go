package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/prompts"
)

// Classifier asks an OpenAI-compatible chat completion endpoint to categorize a channel.
// It returns the raw message content; decoding belongs to the caller.
type Classifier struct {
	client      *resty.Client
	model       string
	endpoint    string
	temperature float32
	maxTokens   int
}

// NewClassifier creates a new classifier client.
// Parameters:
//   - cfg: LLM configuration including model, API key and base URL.
//
// Returns:
//   - *Classifier: initialized chat completion client.
func NewClassifier(cfg *config.LLMConfig) *Classifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Classifier{
		client:      client,
		model:       cfg.Model,
		endpoint:    strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		temperature: float32(cfg.Temperature),
		maxTokens:   400,
	}
}

// GetModel returns the model name being used.
func (c *Classifier) GetModel() string {
	return c.model
}

// OpenAI-compatible Chat Completion API request/response structures
type llmRequest struct {
	Model          string          `json:"model"`
	Messages       []llmMessage    `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type llmResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Categorize sends the rendered prompt and returns the model's reply verbatim.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - input: channel metadata, titles, transcript excerpt and vocabulary.
//
// Returns:
//   - string: raw message content, expected to hold a JSON object.
//   - error: non-nil if the API call fails or returns no choices.
func (c *Classifier) Categorize(ctx context.Context, input prompts.CategorizationInput) (string, error) {
	req := llmRequest{
		Model: c.model,
		Messages: []llmMessage{
			{Role: "system", Content: prompts.CategorizationSystemPrompt},
			{Role: "user", Content: prompts.BuildCategorizationPrompt(input)},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp llmResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call classifier API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != nil {
			return "", fmt.Errorf("classifier API returned error: HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("classifier API returned error: HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	if resp.Error != nil {
		return "", fmt.Errorf("classifier API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from classifier API: no choices in response (status: %d)", httpResp.StatusCode())
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("classifier API returned empty content")
	}
	return content, nil
}
