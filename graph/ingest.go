package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/statute"
)

// Corpus is the on-disk form of a prepared statute corpus: lexical units with
// pre-computed paragraph embeddings, and the containment / implements edges
// between them, with relationship embeddings where available.
type Corpus struct {
	Units []*Node `json:"units"`
	Edges []*Edge `json:"edges"`
}

// LoadCorpus reads a corpus file and fills in the fields derivable from each
// unit's composite identifier (law name, tier, number) when absent.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var corpus Corpus
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	for _, n := range corpus.Units {
		components := statute.Parse(n.ID)
		if n.LawName == "" {
			n.LawName = components.LawName
		}
		if n.LawTier == "" {
			n.LawTier = components.Tier
		}
		if n.Number == "" {
			segments := strings.Split(n.ID, statute.Separator)
			n.Number = segments[len(segments)-1]
		}
	}
	return &corpus, nil
}

// Ingest loads a corpus file into the store.
func Ingest(ctx context.Context, client *Client, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	corpus, err := LoadCorpus(path)
	if err != nil {
		return err
	}
	if err := client.UpsertUnits(ctx, corpus.Units, corpus.Edges); err != nil {
		return err
	}
	logger.Info("corpus ingested",
		zap.String("path", path),
		zap.Int("units", len(corpus.Units)),
		zap.Int("edges", len(corpus.Edges)))
	return nil
}
