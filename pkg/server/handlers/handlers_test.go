package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/semroute/pkg/encoder"
	"github.com/soundprediction/semroute/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve runs a single handler against a test request.
func serve(h gin.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	c.Request = httptest.NewRequest(method, path, r)
	c.Request.Header.Set("Content-Type", "application/json")
	h(c)
	return w
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fittedTfidf() *encoder.TfidfEncoder {
	enc := encoder.NewTfidfEncoder(encoder.WithTfidfLogger(discardLogger()))
	if err := enc.Fit([]types.Route{
		{Name: "greeting", Utterances: []string{"hello there", "hi"}},
		{Name: "weather", Utterances: []string{"is it raining", "weather today"}},
	}); err != nil {
		panic(err)
	}
	return enc
}

type stubEmbeddings struct {
	resp openai.EmbeddingResponse
	err  error
}

func (s *stubEmbeddings) CreateEmbeddings(context.Context, openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return s.resp, s.err
}

func openaiEncoder(api encoder.EmbeddingsAPI) *encoder.OpenAIEncoder {
	enc, err := encoder.NewOpenAIEncoder(encoder.OpenAIConfig{
		APIKey: "test-key",
		NewClient: func(string, encoder.OpenAIConfig) (encoder.EmbeddingsAPI, error) {
			return api, nil
		},
		Retry: &encoder.RetryConfig{
			MaxAttempts: 2,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
		Logger: discardLogger(),
	})
	if err != nil {
		panic(err)
	}
	return enc
}

func encoderWithoutFit() *encoder.TfidfEncoder {
	return encoder.NewTfidfEncoder(encoder.WithTfidfLogger(discardLogger()))
}
