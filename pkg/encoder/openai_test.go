package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/semroute/pkg/config"
	"github.com/soundprediction/semroute/pkg/metrics"
)

var _ Encoder = (*OpenAIEncoder)(nil)

type fakeResult struct {
	resp openai.EmbeddingResponse
	err  error
}

// fakeEmbeddingsAPI returns results in order, repeating the last one.
type fakeEmbeddingsAPI struct {
	mu       sync.Mutex
	calls    int
	requests []openai.EmbeddingRequest
	results  []fakeResult
}

func (f *fakeEmbeddingsAPI) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, conv.Convert())
	r := f.results[min(f.calls, len(f.results))-1]
	return r.resp, r.err
}

func (f *fakeEmbeddingsAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func embeddingResponse(vectors ...[]float32) openai.EmbeddingResponse {
	data := make([]openai.Embedding, len(vectors))
	for i, v := range vectors {
		data[i] = openai.Embedding{Object: "embedding", Embedding: v, Index: i}
	}
	return openai.EmbeddingResponse{
		Object: "list",
		Data:   data,
		Model:  openai.AdaEmbeddingV2,
		Usage:  openai.Usage{PromptTokens: 0, TotalTokens: 20},
	}
}

func providerErr(msg string) error {
	return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: msg}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEncoder(t *testing.T, api EmbeddingsAPI, sleeper *recordingSleeper) *OpenAIEncoder {
	t.Helper()
	enc, err := NewOpenAIEncoder(OpenAIConfig{
		APIKey: "test_api_key",
		NewClient: func(string, OpenAIConfig) (EmbeddingsAPI, error) {
			return api, nil
		},
		Retry:  &RetryConfig{Sleep: sleeper.Sleep},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	return enc
}

func TestNewOpenAIEncoder(t *testing.T) {
	t.Run("key from environment", func(t *testing.T) {
		var looked string
		enc, err := NewOpenAIEncoder(OpenAIConfig{
			Getenv: func(name string) string {
				looked = name
				return "fake-api-key"
			},
			Logger: discardLogger(),
		})
		require.NoError(t, err)
		assert.NotNil(t, enc.Client())
		assert.Equal(t, DefaultAPIKeyEnv, looked)
		assert.Equal(t, DefaultOpenAIModel, enc.Model())
	})

	t.Run("no api key", func(t *testing.T) {
		_, err := NewOpenAIEncoder(OpenAIConfig{
			Getenv: func(string) string { return "" },
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "OpenAI API key cannot be 'None'.")
	})

	t.Run("explicit key wins over environment", func(t *testing.T) {
		var gotKey string
		_, err := NewOpenAIEncoder(OpenAIConfig{
			APIKey:    "explicit-key",
			APIKeyEnv: "CUSTOM_KEY",
			Getenv:    func(string) string { return "env-key" },
			NewClient: func(apiKey string, _ OpenAIConfig) (EmbeddingsAPI, error) {
				gotKey = apiKey
				return &fakeEmbeddingsAPI{}, nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "explicit-key", gotKey)
	})

	t.Run("custom environment variable", func(t *testing.T) {
		_, err := NewOpenAIEncoder(OpenAIConfig{
			APIKeyEnv: "CUSTOM_KEY",
			Getenv: func(name string) string {
				if name == "CUSTOM_KEY" {
					return "custom"
				}
				return ""
			},
		})
		assert.NoError(t, err)
	})

	t.Run("client initialization error", func(t *testing.T) {
		_, err := NewOpenAIEncoder(OpenAIConfig{
			Getenv: func(string) string { return "fake-api-key" },
			NewClient: func(string, OpenAIConfig) (EmbeddingsAPI, error) {
				return nil, errors.New("Initialization error")
			},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInitialization)
		assert.Contains(t, err.Error(), "OpenAI API client failed to initialize. Error: Initialization error")
	})

	t.Run("invalid base url", func(t *testing.T) {
		_, err := NewOpenAIEncoder(OpenAIConfig{
			APIKey:  "k",
			BaseURL: "ftp://example.com",
		})
		assert.ErrorIs(t, err, ErrInitialization)
	})

	t.Run("dimensions", func(t *testing.T) {
		tests := []struct {
			model      string
			dimensions int
			expected   int
		}{
			{"text-embedding-3-small", 0, 1536},
			{"text-embedding-3-large", 0, 3072},
			{"text-embedding-ada-002", 0, 1536},
			{"custom-model", 512, 512},
		}
		for _, tt := range tests {
			enc, err := NewOpenAIEncoder(OpenAIConfig{APIKey: "k", Model: tt.model, Dimensions: tt.dimensions})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, enc.Dimensions(), tt.model)
		}
	})
}

func TestOpenAIEncoderUninitializedClient(t *testing.T) {
	api := &fakeEmbeddingsAPI{results: []fakeResult{{resp: embeddingResponse([]float32{0.1})}}}
	enc := newTestEncoder(t, api, &recordingSleeper{})

	// Closing drops the client handle
	require.NoError(t, enc.Close())
	assert.Nil(t, enc.Client())

	_, err := enc.Encode(context.Background(), []string{"test document"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Contains(t, err.Error(), "OpenAI client is not initialized.")
	assert.Equal(t, 0, api.callCount())
}

func TestOpenAIEncoderEncode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{
			{resp: embeddingResponse([]float32{0.1, 0.2}, []float32{0.3, 0.4})},
		}}
		sleeper := &recordingSleeper{}
		enc := newTestEncoder(t, api, sleeper)

		embeddings, err := enc.Encode(context.Background(), []string{"first", "second"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, embeddings)
		assert.Equal(t, 1, api.callCount())
		assert.Empty(t, sleeper.delays)

		require.Len(t, api.requests, 1)
		assert.Equal(t, []string{"first", "second"}, api.requests[0].Input)
		assert.Equal(t, openai.EmbeddingModel(DefaultOpenAIModel), api.requests[0].Model)
	})

	t.Run("success after one provider error", func(t *testing.T) {
		retriesBefore := testutil.ToFloat64(metrics.EncodeRetries.WithLabelValues("openai", string(ProviderRateLimit)))
		api := &fakeEmbeddingsAPI{results: []fakeResult{
			{err: providerErr("OpenAI error")},
			{resp: embeddingResponse([]float32{0.1, 0.2})},
		}}
		sleeper := &recordingSleeper{}
		enc := newTestEncoder(t, api, sleeper)

		embeddings, err := enc.Encode(context.Background(), []string{"test document"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.1, 0.2}}, embeddings)
		assert.Equal(t, 2, api.callCount())
		assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
		assert.Equal(t, retriesBefore+1, testutil.ToFloat64(metrics.EncodeRetries.WithLabelValues("openai", string(ProviderRateLimit))))
	})

	t.Run("success after two provider errors", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{
			{err: providerErr("rate limited")},
			{err: &openai.APIError{HTTPStatusCode: http.StatusBadGateway, Message: "bad gateway"}},
			{resp: embeddingResponse([]float32{0.1, 0.2})},
		}}
		sleeper := &recordingSleeper{}
		enc := newTestEncoder(t, api, sleeper)

		embeddings, err := enc.Encode(context.Background(), []string{"test document"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.1, 0.2}}, embeddings)
		assert.Equal(t, 3, api.callCount())
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{{err: providerErr("Test error")}}}
		sleeper := &recordingSleeper{}
		enc := newTestEncoder(t, api, sleeper)

		_, err := enc.Encode(context.Background(), []string{"test document"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoEmbeddingReturned)
		assert.Contains(t, err.Error(), "No embeddings returned. Error")
		assert.Contains(t, err.Error(), "Test error")
		assert.Equal(t, 3, api.callCount())
		assert.Len(t, sleeper.delays, 2)
	})

	t.Run("non-provider error fails fast", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{{err: errors.New("Non-OpenAIError")}}}
		sleeper := &recordingSleeper{}
		enc := newTestEncoder(t, api, sleeper)

		_, err := enc.Encode(context.Background(), []string{"test document"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCallFailed)
		assert.Contains(t, err.Error(), "OpenAI API call failed. Error: Non-OpenAIError")
		assert.Equal(t, 1, api.callCount())
		assert.Empty(t, sleeper.delays)
	})

	t.Run("client error status is not retried", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{
			{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Invalid API key"}},
		}}
		enc := newTestEncoder(t, api, &recordingSleeper{})

		_, err := enc.Encode(context.Background(), []string{"test document"})
		assert.ErrorIs(t, err, ErrCallFailed)
		assert.Equal(t, 1, api.callCount())
	})

	t.Run("mismatched response length", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{{resp: embeddingResponse([]float32{0.1})}}}
		enc := newTestEncoder(t, api, &recordingSleeper{})

		_, err := enc.Encode(context.Background(), []string{"a", "b"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoEmbeddingReturned)
		assert.Contains(t, err.Error(), "expected 2 embeddings, got 1")
		assert.Equal(t, 1, api.callCount())
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{{resp: embeddingResponse()}}}
		enc := newTestEncoder(t, api, &recordingSleeper{})

		embeddings, err := enc.Encode(context.Background(), []string{})
		require.NoError(t, err)
		assert.Empty(t, embeddings)
		assert.Equal(t, 0, api.callCount())
	})

	t.Run("cancelled context is not retried", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{{err: providerErr("rate limited")}}}
		sleeper := &recordingSleeper{}
		enc := newTestEncoder(t, api, sleeper)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := enc.Encode(ctx, []string{"test document"})
		assert.ErrorIs(t, err, ErrCallFailed)
		assert.Equal(t, 1, api.callCount())
		assert.Empty(t, sleeper.delays)
	})

	t.Run("backoff interrupted", func(t *testing.T) {
		api := &fakeEmbeddingsAPI{results: []fakeResult{{err: providerErr("rate limited")}}}
		enc, err := NewOpenAIEncoder(OpenAIConfig{
			APIKey:    "k",
			NewClient: func(string, OpenAIConfig) (EmbeddingsAPI, error) { return api, nil },
			Retry: &RetryConfig{Sleep: func(context.Context, time.Duration) error {
				return context.DeadlineExceeded
			}},
			Logger: discardLogger(),
		})
		require.NoError(t, err)

		_, err = enc.Encode(context.Background(), []string{"test document"})
		assert.ErrorIs(t, err, ErrCallFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, api.callCount())
	})
}

func TestOpenAIEncoderRateLimit(t *testing.T) {
	api := &fakeEmbeddingsAPI{results: []fakeResult{{resp: embeddingResponse([]float32{1})}}}
	enc, err := NewOpenAIEncoder(OpenAIConfig{
		APIKey:            "k",
		RequestsPerMinute: 60,
		NewClient:         func(string, OpenAIConfig) (EmbeddingsAPI, error) { return api, nil },
		Logger:            discardLogger(),
	})
	require.NoError(t, err)

	// The first request uses the initial burst token
	_, err = enc.Encode(context.Background(), []string{"a"})
	require.NoError(t, err)

	// The next token is a second away; a cancelled context gives up before calling
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = enc.Encode(ctx, []string{"b"})
	assert.ErrorIs(t, err, ErrCallFailed)
	assert.Equal(t, 1, api.callCount())
}

type recordingAlerter struct {
	subjects []string
}

func (a *recordingAlerter) Alert(subject, _ string) error {
	a.subjects = append(a.subjects, subject)
	return nil
}

func TestOpenAIEncoderCircuitBreaker(t *testing.T) {
	api := &fakeEmbeddingsAPI{results: []fakeResult{{err: providerErr("overloaded")}}}
	alerter := &recordingAlerter{}
	enc, err := NewOpenAIEncoder(OpenAIConfig{
		APIKey:    "k",
		NewClient: func(string, OpenAIConfig) (EmbeddingsAPI, error) { return api, nil },
		Retry:     &RetryConfig{Sleep: (&recordingSleeper{}).Sleep},
		CircuitBreaker: &config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60,
			Timeout:          60,
			ReadyToTripRatio: 0.5,
		},
		Alerter: alerter,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)

	breaker, ok := enc.Client().(*breakerAPI)
	require.True(t, ok)

	_, err = enc.Encode(context.Background(), []string{"doc"})
	assert.ErrorIs(t, err, ErrNoEmbeddingReturned)
	assert.Equal(t, 3, api.callCount())
	assert.Equal(t, gobreaker.StateOpen, breaker.State())
	require.Len(t, alerter.subjects, 1)
	assert.Contains(t, alerter.subjects[0], "Circuit Breaker Tripped")

	// An open breaker fails fast without reaching the API.
	_, err = enc.Encode(context.Background(), []string{"doc"})
	assert.ErrorIs(t, err, ErrCallFailed)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, api.callCount())
}

func TestOpenAIEncoderCircuitBreakerIgnoresClientErrors(t *testing.T) {
	api := &fakeEmbeddingsAPI{results: []fakeResult{{err: errors.New("bad request")}}}
	enc, err := NewOpenAIEncoder(OpenAIConfig{
		APIKey:    "k",
		NewClient: func(string, OpenAIConfig) (EmbeddingsAPI, error) { return api, nil },
		CircuitBreaker: &config.CircuitBreakerConfig{
			Enabled: true, MaxRequests: 1, Interval: 60, Timeout: 60, ReadyToTripRatio: 0.5,
		},
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := enc.Encode(context.Background(), []string{"doc"})
		assert.ErrorIs(t, err, ErrCallFailed)
	}
	assert.Equal(t, gobreaker.StateClosed, enc.Client().(*breakerAPI).State())
	assert.Equal(t, 5, api.callCount())
}

func TestOpenAIEncoderHTTP(t *testing.T) {
	const success = `{"object":"list","data":[{"object":"embedding","embedding":[0.1,0.2],"index":0}],"model":"text-embedding-3-small","usage":{"prompt_tokens":2,"total_tokens":2}}`

	t.Run("retries server errors", func(t *testing.T) {
		var mu sync.Mutex
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			requests++
			n := requests
			mu.Unlock()

			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			if n == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
				return
			}
			fmt.Fprint(w, success)
		}))
		defer server.Close()

		enc, err := NewOpenAIEncoder(OpenAIConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Retry:   &RetryConfig{Sleep: (&recordingSleeper{}).Sleep},
			Logger:  discardLogger(),
		})
		require.NoError(t, err)

		embeddings, err := enc.Encode(context.Background(), []string{"test document"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.1, 0.2}}, embeddings)
		assert.Equal(t, 2, requests)
	})

	t.Run("unauthorized is fatal", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`)
		}))
		defer server.Close()

		enc, err := NewOpenAIEncoder(OpenAIConfig{
			APIKey:  "invalid-key",
			BaseURL: server.URL + "/v1",
			Retry:   &RetryConfig{Sleep: (&recordingSleeper{}).Sleep},
			Logger:  discardLogger(),
		})
		require.NoError(t, err)

		_, err = enc.Encode(context.Background(), []string{"test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCallFailed)
		assert.Contains(t, err.Error(), "Invalid API key")
		assert.Equal(t, 1, requests)
	})
}
