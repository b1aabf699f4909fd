package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/types"
)

// SynthesizerConfig bounds the evidence handed to the model.
type SynthesizerConfig struct {
	// MaxEvidenceTokens caps the token budget spent on evidence passages.
	MaxEvidenceTokens int `yaml:"max_evidence_tokens" json:"max_evidence_tokens"`

	// Encoding is the tiktoken encoding used for budgeting.
	Encoding string `yaml:"encoding" json:"encoding"`
}

// DefaultSynthesizerConfig returns the default evidence budget.
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		MaxEvidenceTokens: 6000,
		Encoding:          "cl100k_base",
	}
}

// Synthesizer turns a merged evidence list into one cited prose answer.
type Synthesizer struct {
	provider Provider
	config   SynthesizerConfig
	encoder  *tiktoken.Tiktoken
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer over the given provider. A missing
// tiktoken encoding degrades to a character-based budget rather than failing.
func NewSynthesizer(provider Provider, config SynthesizerConfig, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxEvidenceTokens == 0 {
		config.MaxEvidenceTokens = DefaultSynthesizerConfig().MaxEvidenceTokens
	}
	if config.Encoding == "" {
		config.Encoding = DefaultSynthesizerConfig().Encoding
	}
	encoder, err := tiktoken.GetEncoding(config.Encoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using character budget",
			zap.String("encoding", config.Encoding), zap.Error(err))
		encoder = nil
	}
	return &Synthesizer{
		provider: provider,
		config:   config,
		encoder:  encoder,
		logger:   logger.With(zap.String("component", "synthesizer")),
	}
}

const synthesisPromptFormat = `You are a Korean legal assistant. Answer the question using only the statute passages below. Cite each passage you rely on by its reference (e.g. 제36조 제1항) and name the law it belongs to. If the passages do not answer the question, say so.

Question: %s

Passages:
%s

Answer in Korean prose with citations.`

// Synthesize produces a single cited answer from the merged evidence.
// Evidence beyond the token budget is dropped from the tail, lower-ranked
// passages first.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence []types.Result) (string, error) {
	if len(evidence) == 0 {
		return "", types.NewError(types.ErrEmptyQuery, "no evidence to synthesize from").
			WithStage("synthesis")
	}

	var b strings.Builder
	budget := s.config.MaxEvidenceTokens
	for i, result := range evidence {
		passage := s.formatPassage(i+1, result)
		cost := s.tokenCount(passage)
		if cost > budget && b.Len() > 0 {
			s.logger.Debug("evidence truncated to token budget",
				zap.Int("included", i), zap.Int("total", len(evidence)))
			break
		}
		budget -= cost
		b.WriteString(passage)
	}

	prompt := fmt.Sprintf(synthesisPromptFormat, query, b.String())
	return s.provider.Complete(ctx, prompt)
}

func (s *Synthesizer) formatPassage(rank int, result types.Result) string {
	reference := result.Article
	if reference == "" {
		reference = result.ID
	}
	law := result.LawName
	if law == "" {
		law = "(출처 미상)"
	}
	return fmt.Sprintf("[%d] %s — %s\n%s\n\n", rank, law, reference, result.Content)
}

func (s *Synthesizer) tokenCount(text string) int {
	if s.encoder != nil {
		return len(s.encoder.Encode(text, nil, nil))
	}
	// Rough budget fallback: assume ~2 characters per token for Korean text.
	return len([]rune(text)) / 2
}
