package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/soundprediction/semroute/pkg/alert"
	"github.com/soundprediction/semroute/pkg/config"
)

// breakerAPI wraps an EmbeddingsAPI with circuit breaking logic.
// Only provider errors count as failures.
type breakerAPI struct {
	api EmbeddingsAPI
	cb  *gobreaker.CircuitBreaker
}

func newBreakerAPI(api EmbeddingsAPI, cfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger, name string) *breakerAPI {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		IsSuccessful: func(err error) bool {
			_, provider := classifyError(err)
			return !provider
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many provider errors detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
					logger.Error("Failed to send circuit breaker alert", "breaker", name, "error", err)
				}
			}
		},
	}

	return &breakerAPI{
		api: api,
		cb:  gobreaker.NewCircuitBreaker(st),
	}
}

// CreateEmbeddings implements EmbeddingsAPI.
func (b *breakerAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.api.CreateEmbeddings(ctx, conv)
	})
	if err != nil {
		return openai.EmbeddingResponse{}, err
	}
	return resp.(openai.EmbeddingResponse), nil
}

// State returns the current breaker state.
func (b *breakerAPI) State() gobreaker.State {
	return b.cb.State()
}
