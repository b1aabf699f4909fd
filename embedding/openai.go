package embedding

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

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url" env:"BASE_URL"`
	APIKey     string        `yaml:"api_key" json:"api_key" env:"API_KEY"`
	Model      string        `yaml:"model" json:"model" env:"MODEL"`
	Dimensions int           `yaml:"dimensions" json:"dimensions" env:"DIMENSIONS"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	MaxBatch   int           `yaml:"max_batch" json:"max_batch" env:"MAX_BATCH"`

	// RequestsPerSecond caps outbound calls; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// DefaultOpenAIConfig returns defaults for an OpenAI-compatible endpoint.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
		MaxBatch:   100,
	}
}

// OpenAIProvider is an embedding Provider backed by an OpenAI-compatible
// /embeddings endpoint.
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
		config.Timeout = 30 * time.Second
	}
	if config.MaxBatch == 0 {
		config.MaxBatch = 100
	}
	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &OpenAIProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "embedding_provider")),
	}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) Dimensions() int { return p.config.Dimensions }

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedQuery embeds a single query string.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vectors, err := p.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "no embedding returned").
			WithStage("embedding").WithRetryable(true)
	}
	return vectors[0], nil
}

// EmbedDocuments embeds corpus texts, batching to the provider limit.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	all := make([][]float64, 0, len(documents))
	for start := 0; start < len(documents); start += p.config.MaxBatch {
		end := start + p.config.MaxBatch
		if end > len(documents) {
			end = len(documents)
		}
		vectors, err := p.embed(ctx, documents[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (p *OpenAIProvider) embed(ctx context.Context, input []string) ([][]float64, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrEmbeddingUnavailable, "rate limit wait cancelled").
				WithStage("embedding").WithCause(err)
		}
	}

	body, err := json.Marshal(embeddingRequest{Input: input, Model: p.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "embedding request failed").
			WithStage("embedding").WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "read embedding response").
			WithStage("embedding").WithRetryable(true).WithCause(err)
	}
	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "decode embedding response").
			WithStage("embedding").WithCause(err)
	}

	vectors := make([][]float64, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			continue
		}
		if p.config.Dimensions != 0 && len(item.Embedding) != p.config.Dimensions {
			return nil, types.NewError(types.ErrDimensionMismatch,
				fmt.Sprintf("provider returned %d dimensions, configured %d",
					len(item.Embedding), p.config.Dimensions)).WithStage("embedding")
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func mapHTTPError(status int, body string) *types.Error {
	code := types.ErrEmbeddingUnavailable
	retryable := status >= 500
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = types.ErrUnauthorized
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = types.ErrUpstreamTimeout
		retryable = true
	}
	msg := body
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return types.NewError(code, fmt.Sprintf("embedding endpoint returned %d: %s", status, msg)).
		WithStage("embedding").WithRetryable(retryable)
}
