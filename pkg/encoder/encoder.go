package encoder

import (
	"context"

	"github.com/soundprediction/semroute/pkg/types"
)

// Encoder converts an ordered batch of documents into one vector per document,
// in the same order.
type Encoder interface {
	// Encode returns len(documents) vectors.
	Encode(ctx context.Context, documents []string) ([][]float32, error)

	// Name returns the encoder identifier used in logs and metrics.
	Name() string

	// Close releases the encoder's resources.
	Close() error
}

// Fitter is implemented by encoders that learn from a route corpus.
type Fitter interface {
	Fit(routes []types.Route) error
}
