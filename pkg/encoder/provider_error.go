package encoder

import (
	"errors"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ProviderErrorKind tags a transient, retry-worthy provider failure.
type ProviderErrorKind string

const (
	ProviderRateLimit ProviderErrorKind = "rate_limit"
	ProviderServer    ProviderErrorKind = "server"
	ProviderTimeout   ProviderErrorKind = "timeout"
	ProviderTransport ProviderErrorKind = "transport"
)

// ProviderError is a transient failure reported by the embeddings service.
// The retry loop retries errors carrying this tag and nothing else.
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

// NewProviderError tags err as a provider error of the given kind.
func NewProviderError(kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return "provider error: " + string(e.Kind)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// classifyError reports whether err is a provider error and, if so, its tag.
func classifyError(err error) (*ProviderError, bool) {
	if err == nil {
		return nil, false
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr, true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fromStatus(reqErr.HTTPStatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Kind: ProviderTimeout, Err: err}, true
	}

	return nil, false
}

func fromStatus(code int, err error) (*ProviderError, bool) {
	var kind ProviderErrorKind
	switch {
	case code == 0:
		kind = ProviderTransport
	case code == http.StatusTooManyRequests:
		kind = ProviderRateLimit
	case code == http.StatusRequestTimeout:
		kind = ProviderTimeout
	case code == http.StatusConflict, code >= 500:
		kind = ProviderServer
	default:
		return nil, false
	}
	return &ProviderError{Kind: kind, StatusCode: code, Err: err}, true
}
