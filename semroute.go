package semroute

import (
	"fmt"
	"log/slog"

	"github.com/soundprediction/semroute/pkg/alert"
	"github.com/soundprediction/semroute/pkg/config"
	"github.com/soundprediction/semroute/pkg/encoder"
	"github.com/soundprediction/semroute/pkg/types"
)

// NewEncoder builds the encoder selected by cfg.Encoder.Type.
// A TF-IDF encoder is fitted on cfg.Encoder.Tfidf.RoutesFile when one is set.
func NewEncoder(cfg *config.Config, logger *slog.Logger) (encoder.Encoder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Encoder.Type {
	case config.EncoderOpenAI:
		return NewOpenAIEncoder(cfg, logger)
	case config.EncoderTfidf:
		return NewTfidfEncoder(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported encoder type: %q", cfg.Encoder.Type)
	}
}

// NewOpenAIEncoder builds an OpenAI encoder from cfg.
func NewOpenAIEncoder(cfg *config.Config, logger *slog.Logger) (*encoder.OpenAIEncoder, error) {
	oc := cfg.Encoder.OpenAI
	ec := encoder.OpenAIConfig{
		APIKey:            oc.APIKey,
		APIKeyEnv:         oc.APIKeyEnv,
		Model:             oc.Model,
		BaseURL:           oc.BaseURL,
		Dimensions:        oc.Dimensions,
		RequestsPerMinute: oc.RequestsPerMinute,
		Retry: &encoder.RetryConfig{
			MaxAttempts:       oc.Retry.MaxAttempts,
			InitialDelay:      oc.Retry.InitialDelay,
			MaxDelay:          oc.Retry.MaxDelay,
			BackoffMultiplier: oc.Retry.BackoffMultiplier,
		},
		Logger: logger,
	}
	if cfg.CircuitBreaker.Enabled {
		cb := cfg.CircuitBreaker
		ec.CircuitBreaker = &cb
		ec.Alerter = alert.New(cfg.Alert, logger)
	}
	return encoder.NewOpenAIEncoder(ec)
}

// NewTfidfEncoder builds a TF-IDF encoder from cfg, fitting it on the
// configured route file.
func NewTfidfEncoder(cfg *config.Config, logger *slog.Logger) (*encoder.TfidfEncoder, error) {
	tc := cfg.Encoder.Tfidf
	enc := encoder.NewTfidfEncoder(
		encoder.WithL2Normalization(tc.Normalize),
		encoder.WithTfidfLogger(logger),
	)
	if tc.RoutesFile == "" {
		return enc, nil
	}

	routes, err := types.LoadRoutes(tc.RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	if err := enc.Fit(routes); err != nil {
		return nil, fmt.Errorf("failed to fit TF-IDF encoder: %w", err)
	}
	return enc, nil
}
