// Package embedding provides the embedding provider boundary. The same
// provider (model and dimensionality) must be used for corpus embeddings,
// query embeddings, and domain centroids. Vectors from different models are
// not comparable, so dimensionality is checked at wiring time.
package embedding

import (
	"context"

	"github.com/lawgraph/lawgraph/types"
)

// Provider turns text into fixed-length vectors.
type Provider interface {
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments embeds a batch of corpus texts.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the provider's output dimensionality.
	Dimensions() int
}

// ValidateDimensions fails fast when a produced vector does not match the
// provider's declared dimensionality.
func ValidateDimensions(provider Provider, vector []float64) error {
	if provider.Dimensions() != 0 && len(vector) != provider.Dimensions() {
		return types.NewError(types.ErrDimensionMismatch,
			"provider returned a vector of unexpected dimensionality").
			WithStage("embedding")
	}
	return nil
}
