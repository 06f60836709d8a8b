package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/soundprediction/semroute/pkg/alert"
	"github.com/soundprediction/semroute/pkg/config"
	"github.com/soundprediction/semroute/pkg/metrics"
)

// DefaultAPIKeyEnv is the environment variable consulted when no API key is given.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// EmbeddingsAPI is the part of the OpenAI client used by OpenAIEncoder.
// *openai.Client satisfies it.
type EmbeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// ClientFactory builds the embeddings client for a resolved API key.
type ClientFactory func(apiKey string, cfg OpenAIConfig) (EmbeddingsAPI, error)

// OpenAIConfig configures the OpenAI encoder.
type OpenAIConfig struct {
	// APIKey overrides the environment lookup when non-empty.
	APIKey string
	// APIKeyEnv names the fallback environment variable (default: OPENAI_API_KEY).
	APIKeyEnv string
	// Getenv reads the environment (default: os.Getenv).
	Getenv func(string) string

	Model   string
	BaseURL string
	// Dimensions is sent with the request when positive.
	Dimensions int

	// RequestsPerMinute throttles attempts client-side when positive.
	RequestsPerMinute float64

	Retry          *RetryConfig
	CircuitBreaker *config.CircuitBreakerConfig
	Alerter        alert.Alerter

	// NewClient builds the API client (default: NewOpenAIClient).
	NewClient ClientFactory
	Logger    *slog.Logger
}

// OpenAIEncoder generates embeddings using the OpenAI API.
type OpenAIEncoder struct {
	mu         sync.RWMutex
	client     EmbeddingsAPI
	model      string
	dimensions int
	retry      RetryConfig
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewOpenAIEncoder resolves the API key and builds the API client.
func NewOpenAIEncoder(cfg OpenAIConfig) (*OpenAIEncoder, error) {
	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	envName := cfg.APIKeyEnv
	if envName == "" {
		envName = DefaultAPIKeyEnv
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = getenv(envName)
	}
	if apiKey == "" {
		return nil, newError(KindConfiguration, "OpenAI API key cannot be 'None'.", nil)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	factory := cfg.NewClient
	if factory == nil {
		factory = NewOpenAIClient
	}
	client, err := factory(apiKey, cfg)
	if err != nil {
		return nil, newError(KindInitialization, "OpenAI API client failed to initialize.", err)
	}
	if client == nil {
		return nil, newError(KindInitialization, "OpenAI API client failed to initialize.", errors.New("client factory returned no client"))
	}

	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		client = newBreakerAPI(client, *cfg.CircuitBreaker, cfg.Alerter, logger, "openai-embeddings")
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}

	return &OpenAIEncoder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		retry:      cfg.Retry.normalize(),
		limiter:    limiter,
		logger:     logger.With("encoder", "openai", "model", cfg.Model),
	}, nil
}

// NewOpenAIClient is the default ClientFactory.
// Supports OpenAI-compatible services through a custom BaseURL.
func NewOpenAIClient(apiKey string, cfg OpenAIConfig) (EmbeddingsAPI, error) {
	if cfg.BaseURL == "" {
		return openai.NewClient(apiKey), nil
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	// Many services expect "/v1" to be appended to the base URL
	if !hasAPIPath(clientConfig.BaseURL) {
		clientConfig.BaseURL += "/v1"
	}
	return openai.NewClientWithConfig(clientConfig), nil
}

// Encode generates embeddings for documents in a single request, retrying
// provider errors with exponential backoff.
func (e *OpenAIEncoder) Encode(ctx context.Context, documents []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.encode(ctx, documents)
	metrics.ObserveEncode(e.Name(), statusLabel(err), len(documents), start)
	return vectors, err
}

func (e *OpenAIEncoder) encode(ctx context.Context, documents []string) ([][]float32, error) {
	client := e.Client()
	if client == nil {
		return nil, newError(KindNotInitialized, "OpenAI client is not initialized.", nil)
	}
	if len(documents) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:      documents,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}

	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.retry.delay(attempt - 1)
			e.logger.WarnContext(ctx, "Retrying embeddings request",
				"attempt", attempt,
				"max_attempts", e.retry.MaxAttempts,
				"delay", delay,
				"error", lastErr)
			if err := e.retry.Sleep(ctx, delay); err != nil {
				return nil, newError(KindCallFailed, "OpenAI API call failed.", err)
			}
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, newError(KindCallFailed, "OpenAI API call failed.", err)
			}
		}

		resp, err := client.CreateEmbeddings(ctx, req)
		if err == nil {
			return e.extract(resp, len(documents))
		}

		// Cancellation by the caller is never retried.
		if ctx.Err() != nil {
			return nil, newError(KindCallFailed, "OpenAI API call failed.", err)
		}

		perr, ok := classifyError(err)
		if !ok {
			e.logger.ErrorContext(ctx, "Embeddings request failed", "attempt", attempt, "error", err)
			return nil, newError(KindCallFailed, "OpenAI API call failed.", err)
		}

		lastErr = err
		if attempt < e.retry.MaxAttempts {
			metrics.EncodeRetries.WithLabelValues(e.Name(), string(perr.Kind)).Inc()
		}
	}

	e.logger.ErrorContext(ctx, "Embeddings retries exhausted", "attempts", e.retry.MaxAttempts, "error", lastErr)
	return nil, newError(KindNoEmbeddingReturned, "No embeddings returned.", lastErr)
}

// extract takes one vector per data item in the order returned.
func (e *OpenAIEncoder) extract(resp openai.EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, newError(KindNoEmbeddingReturned, "No embeddings returned.",
			fmt.Errorf("expected %d embeddings, got %d", want, len(resp.Data)))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	e.logger.Debug("Documents encoded", "count", want, "total_tokens", resp.Usage.TotalTokens)
	return vectors, nil
}

// Client returns the API client handle, or nil once the encoder is closed.
func (e *OpenAIEncoder) Client() EmbeddingsAPI {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// Close drops the client handle. Later Encode calls fail with ErrNotInitialized.
func (e *OpenAIEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = nil
	return nil
}

// Name returns "openai".
func (e *OpenAIEncoder) Name() string {
	return "openai"
}

// Model returns the embedding model identifier.
func (e *OpenAIEncoder) Model() string {
	return e.model
}

// Dimensions returns the configured dimensions, or the model's native size.
func (e *OpenAIEncoder) Dimensions() int {
	if e.dimensions > 0 {
		return e.dimensions
	}
	switch openai.EmbeddingModel(e.model) {
	case openai.LargeEmbedding3:
		return 3072
	default:
		return 1536
	}
}

func statusLabel(err error) string {
	if err == nil {
		return metrics.StatusOK
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}

// validateBaseURL validates that the base URL is well-formed and uses http or https.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}

	// Ensure scheme is http or https
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("baseURL must include a host")
	}

	return nil
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	for _, path := range []string{"/v1", "/api"} {
		if strings.HasSuffix(baseURL, path) {
			return true
		}
	}
	return false
}
