// Package semroute provides document encoders for semantic routing.
//
// An encoder turns a batch of texts into dense vectors so that incoming
// queries can be compared against the example utterances of each route.
// Two encoders are available:
//
//   - OpenAIEncoder: remote embeddings from the OpenAI API with bounded
//     retries on provider errors
//   - TfidfEncoder: local TF-IDF vectors over a vocabulary fitted on route
//     utterances
//
// # Basic Usage
//
// Build an encoder directly:
//
//	enc, err := encoder.NewOpenAIEncoder(encoder.OpenAIConfig{
//		Model: "text-embedding-3-small",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer enc.Close()
//
//	vectors, err := enc.Encode(ctx, []string{"what's the weather like?"})
//
// Or let NewEncoder select one from configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	enc, err := semroute.NewEncoder(cfg, logger)
//
// # Fitting
//
// The TF-IDF encoder must be fitted before use:
//
//	routes := []types.Route{
//		{Name: "greeting", Utterances: []string{"hello there", "hi"}},
//		{Name: "weather", Utterances: []string{"is it raining", "weather today"}},
//	}
//	tfidf := encoder.NewTfidfEncoder()
//	if err := tfidf.Fit(routes); err != nil {
//		log.Fatal(err)
//	}
//
// # Error Handling
//
// Encoders return *encoder.Error values. Match them with errors.Is:
//
//   - ErrConfiguration: no API key could be resolved
//   - ErrInitialization: the API client could not be built
//   - ErrNotInitialized: the client handle is absent
//   - ErrNoEmbeddingReturned: retries were exhausted
//   - ErrCallFailed: a non-provider error ended the call
//   - ErrNotFitted: the TF-IDF encoder was used before Fit
//   - ErrEmptyInput: there were no documents to work on
//
// # Architecture
//
//   - pkg/encoder: encoders, error taxonomy, retry policy
//   - pkg/types: routes and route files
//   - pkg/config: viper-backed configuration
//   - pkg/server: HTTP service
//   - pkg/metrics: Prometheus collectors
package semroute
