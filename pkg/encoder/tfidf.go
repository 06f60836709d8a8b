package encoder

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/soundprediction/semroute/pkg/metrics"
	"github.com/soundprediction/semroute/pkg/types"
	"github.com/soundprediction/semroute/pkg/utils"
)

// TfidfEncoder computes TF-IDF vectors over a vocabulary fitted on route
// utterances. It never touches the network.
type TfidfEncoder struct {
	mu        sync.RWMutex
	wordIndex map[string]int
	idf       []float64

	tokenize  Tokenizer
	normalize bool
	logger    *slog.Logger
}

// TfidfOption configures a TfidfEncoder.
type TfidfOption func(*TfidfEncoder)

// WithTokenizer replaces DefaultTokenizer.
func WithTokenizer(t Tokenizer) TfidfOption {
	return func(e *TfidfEncoder) {
		if t != nil {
			e.tokenize = t
		}
	}
}

// WithL2Normalization scales each term-frequency row to unit length before
// the IDF weights are applied.
func WithL2Normalization(enabled bool) TfidfOption {
	return func(e *TfidfEncoder) {
		e.normalize = enabled
	}
}

// WithTfidfLogger sets the logger.
func WithTfidfLogger(logger *slog.Logger) TfidfOption {
	return func(e *TfidfEncoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewTfidfEncoder creates an unfitted TF-IDF encoder.
func NewTfidfEncoder(opts ...TfidfOption) *TfidfEncoder {
	e := &TfidfEncoder{
		tokenize: DefaultTokenizer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("encoder", e.Name())
	return e
}

// Fit builds the vocabulary and IDF weights from the utterances of routes,
// replacing any previous fit. Columns are assigned in first-seen order.
func (e *TfidfEncoder) Fit(routes []types.Route) error {
	docs := types.Utterances(routes)

	wordIndex := make(map[string]int)
	var df []int
	for _, doc := range docs {
		seen := make(map[int]struct{})
		for _, tok := range e.tokenize(doc) {
			idx, ok := wordIndex[tok]
			if !ok {
				idx = len(wordIndex)
				wordIndex[tok] = idx
				df = append(df, 0)
			}
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			df[idx]++
		}
	}
	if len(wordIndex) == 0 {
		return newError(KindEmptyInput, "No documents to fit.", nil)
	}

	n := float64(len(docs))
	idf := make([]float64, len(df))
	for i, count := range df {
		idf[i] = math.Log(n / float64(count))
	}

	e.mu.Lock()
	e.wordIndex = wordIndex
	e.idf = idf
	e.mu.Unlock()

	metrics.VocabularySize.WithLabelValues(e.Name()).Set(float64(len(wordIndex)))
	e.logger.Info("TF-IDF vocabulary fitted", "routes", len(routes), "documents", len(docs), "terms", len(wordIndex))
	return nil
}

// Encode returns one dense vector of length Dimensions() per document.
// Tokens outside the vocabulary are ignored.
func (e *TfidfEncoder) Encode(_ context.Context, documents []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.encode(documents)
	metrics.ObserveEncode(e.Name(), statusLabel(err), len(documents), start)
	return vectors, err
}

func (e *TfidfEncoder) encode(documents []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.wordIndex == nil || e.idf == nil {
		return nil, newError(KindNotFitted, "TF-IDF encoder is not fitted.", nil)
	}
	if len(documents) == 0 {
		return nil, newError(KindEmptyInput, "No documents to encode.", nil)
	}

	dim := len(e.wordIndex)
	vectors := make([][]float32, len(documents))
	tf := make([]float64, dim)
	for i, doc := range documents {
		clear(tf)
		for _, tok := range e.tokenize(doc) {
			if idx, ok := e.wordIndex[tok]; ok {
				tf[idx]++
			}
		}
		if e.normalize {
			utils.NormalizeInPlace64(tf)
		}

		vec := make([]float32, dim)
		for j, f := range tf {
			vec[j] = float32(f * e.idf[j])
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// WordIndex returns a copy of the token-to-column mapping, or nil before Fit.
func (e *TfidfEncoder) WordIndex() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.wordIndex == nil {
		return nil
	}
	return maps.Clone(e.wordIndex)
}

// IDF returns a copy of the column-to-weight mapping, or nil before Fit.
func (e *TfidfEncoder) IDF() map[int]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.idf == nil {
		return nil
	}
	out := make(map[int]float64, len(e.idf))
	for i, w := range e.idf {
		out[i] = w
	}
	return out
}

// Fitted reports whether Fit has completed at least once.
func (e *TfidfEncoder) Fitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wordIndex != nil && e.idf != nil
}

// Dimensions returns the vocabulary size, 0 before Fit.
func (e *TfidfEncoder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.wordIndex)
}

// Name returns "tfidf".
func (e *TfidfEncoder) Name() string {
	return "tfidf"
}

// Close is a no-op; the encoder holds no external resources.
func (e *TfidfEncoder) Close() error {
	return nil
}
