package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/types"
)

// DomainLabel is a generated human-readable name and description for a
// topic cluster.
type DomainLabel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Namer summarizes representative member texts into a domain label.
type Namer struct {
	provider Provider
	logger   *zap.Logger
}

// NewNamer creates a namer over the given provider.
func NewNamer(provider Provider, logger *zap.Logger) *Namer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Namer{provider: provider, logger: logger.With(zap.String("component", "namer"))}
}

const namePromptFormat = `The statute passages below were clustered together by topic. Summarize the cluster.

Passages:
%s

Respond in JSON only:
{
  "name": "a 2-5 word Korean topic name",
  "description": "one Korean sentence describing what legal questions this cluster covers"
}`

// Name generates a label from representative member texts.
func (n *Namer) Name(ctx context.Context, samples []string) (*DomainLabel, error) {
	var b strings.Builder
	for i, sample := range samples {
		if i >= 10 {
			break
		}
		if len([]rune(sample)) > 300 {
			sample = string([]rune(sample)[:300])
		}
		fmt.Fprintf(&b, "- %s\n", sample)
	}

	reply, err := n.provider.Complete(ctx, fmt.Sprintf(namePromptFormat, b.String()))
	if err != nil {
		return nil, err
	}
	var label DomainLabel
	if err := json.Unmarshal([]byte(extractJSON(reply)), &label); err != nil {
		return nil, types.NewError(types.ErrLLMUnavailable, "domain label reply is not valid JSON").
			WithStage("partition").WithCause(err)
	}
	if label.Name == "" {
		return nil, types.NewError(types.ErrLLMUnavailable, "domain label reply has no name").
			WithStage("partition")
	}
	return &label, nil
}
