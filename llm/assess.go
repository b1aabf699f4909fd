package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/types"
)

// Assessment is a model's judgment of whether a domain can answer a query.
type Assessment struct {
	Confidence float64 `json:"confidence"`
	CanAnswer  bool    `json:"can_answer"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Assessor asks the model to judge domain relevance for a query.
type Assessor struct {
	provider Provider
	logger   *zap.Logger
}

// NewAssessor creates an assessor over the given provider.
func NewAssessor(provider Provider, logger *zap.Logger) *Assessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assessor{provider: provider, logger: logger.With(zap.String("component", "assessor"))}
}

const assessPromptFormat = `You are evaluating whether a specialized legal domain can answer a user's question.

Domain: %s
Domain description: %s

Question: %s

Judge how likely it is that statutes in this domain contain the answer.
Respond in JSON only:
{
  "confidence": 0.0-1.0,
  "can_answer": true or false,
  "reasoning": "one short sentence"
}`

// Assess obtains a confidence judgment for one domain. Errors are returned
// as-is; the routing layer owns the vector-only fallback.
func (a *Assessor) Assess(ctx context.Context, domainName, domainDescription, query string) (*Assessment, error) {
	prompt := fmt.Sprintf(assessPromptFormat, domainName, domainDescription, query)
	reply, err := a.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(extractJSON(reply)), &assessment); err != nil {
		return nil, types.NewError(types.ErrLLMUnavailable, "assessment reply is not valid JSON").
			WithStage("routing").WithCause(err)
	}
	if assessment.Confidence < 0 {
		assessment.Confidence = 0
	}
	if assessment.Confidence > 1 {
		assessment.Confidence = 1
	}
	return &assessment, nil
}
