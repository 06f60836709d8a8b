// Package encoder turns documents into numeric vectors for semantic routing.
//
// This package defines the Encoder interface and provides two interchangeable
// implementations: a remote encoder backed by an OpenAI-compatible embeddings
// API, and a local TF-IDF encoder fitted on route utterances.
//
// # Supported Encoders
//
//   - OpenAIEncoder: text-embedding-3-small, text-embedding-3-large, text-embedding-ada-002
//   - TfidfEncoder: term-frequency x inverse-document-frequency over a fitted vocabulary
//
// # Usage
//
//	// Create an OpenAI encoder; the key falls back to $OPENAI_API_KEY
//	enc, err := encoder.NewOpenAIEncoder(encoder.OpenAIConfig{
//	    Model: "text-embedding-3-small",
//	})
//
//	// Encode documents
//	vectors, err := enc.Encode(ctx, []string{"hello world"})
//
//	// Fit and use a TF-IDF encoder
//	tfidf := encoder.NewTfidfEncoder()
//	err = tfidf.Fit(routes)
//	vectors, err = tfidf.Encode(ctx, []string{"some docs"})
//
// # Errors
//
// Every failure is returned as an *Error whose Kind identifies the cause.
// Use errors.Is with the sentinel values to branch on it:
//
//	if errors.Is(err, encoder.ErrNotFitted) {
//	    // fit first
//	}
//
// # Retries
//
// The remote encoder retries provider errors (rate limits, server faults,
// timeouts) with exponential backoff up to RetryConfig.MaxAttempts. Any other
// error fails the call immediately.
package encoder
