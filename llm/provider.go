// Package llm provides the language-model boundary: a completion provider
// plus the two call shapes the engine needs, domain assessment and answer
// synthesis. Both are fallible, latency-bearing refinements. Callers always
// carry a fallback branch.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lawgraph/lawgraph/types"
)

// Provider completes a prompt into text.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url" env:"BASE_URL"`
	APIKey      string        `yaml:"api_key" json:"api_key" env:"API_KEY"`
	Model       string        `yaml:"model" json:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" json:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`

	// RequestsPerSecond caps outbound calls; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// DefaultOpenAIConfig returns defaults for an OpenAI-compatible endpoint.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// OpenAIProvider is a Provider backed by a /chat/completions endpoint.
type OpenAIProvider struct {
	config  OpenAIConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIProvider creates a provider for the configured endpoint.
func NewOpenAIProvider(config OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &OpenAIProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm_provider")),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message and returns the reply.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", types.NewError(types.ErrLLMUnavailable, "rate limit wait cancelled").
				WithStage("llm").WithCause(err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       p.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrLLMUnavailable, "chat request failed").
			WithStage("llm").WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrLLMUnavailable, "read chat response").
			WithStage("llm").WithRetryable(true).WithCause(err)
	}
	if resp.StatusCode >= 400 {
		code := types.ErrLLMUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			code = types.ErrRateLimited
		}
		msg := string(respBody)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", types.NewError(code,
			fmt.Sprintf("chat endpoint returned %d: %s", resp.StatusCode, msg)).
			WithStage("llm").WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == 429)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", types.NewError(types.ErrLLMUnavailable, "decode chat response").
			WithStage("llm").WithCause(err)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewError(types.ErrLLMUnavailable, "chat response has no choices").
			WithStage("llm").WithRetryable(true)
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON pulls the outermost JSON object out of a possibly prose-wrapped
// model reply.
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		return reply[start : end+1]
	}
	return reply
}
