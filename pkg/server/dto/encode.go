package dto

import (
	"errors"
	"fmt"

	"github.com/soundprediction/semroute/pkg/types"
)

// Validation errors
var (
	ErrEmptyDocuments   = errors.New("documents cannot be empty")
	ErrTooManyDocuments = errors.New("documents count exceeds maximum (2048)")
	ErrDocumentTooLong  = errors.New("document exceeds maximum length (1MB)")
	ErrTooManyRoutes    = errors.New("routes count exceeds maximum (10000)")
)

// MaxFieldLengths defines maximum sizes to prevent abuse
const (
	MaxDocumentsCount = 2048
	MaxDocumentLength = 1024 * 1024 // 1MB
	MaxRoutesCount    = 10000
)

// EncodeRequest represents a request to encode documents
type EncodeRequest struct {
	Documents []string `json:"documents"`
}

// Validate performs validation on EncodeRequest
func (r *EncodeRequest) Validate() error {
	if len(r.Documents) == 0 {
		return ErrEmptyDocuments
	}
	if len(r.Documents) > MaxDocumentsCount {
		return ErrTooManyDocuments
	}
	for i, doc := range r.Documents {
		if len(doc) > MaxDocumentLength {
			return fmt.Errorf("document %d: %w", i, ErrDocumentTooLong)
		}
	}
	return nil
}

// EncodeResponse holds one vector per requested document
type EncodeResponse struct {
	Encoder    string      `json:"encoder"`
	Dimensions int         `json:"dimensions"`
	Embeddings [][]float32 `json:"embeddings"`
}

// FitRequest represents a request to fit a local encoder on routes
type FitRequest struct {
	Routes []types.Route `json:"routes"`
}

// Validate performs validation on FitRequest
func (r *FitRequest) Validate() error {
	if len(r.Routes) > MaxRoutesCount {
		return ErrTooManyRoutes
	}
	return types.ValidateRoutes(r.Routes)
}

// FitResponse reports the outcome of a fit
type FitResponse struct {
	Encoder    string `json:"encoder"`
	Routes     int    `json:"routes"`
	Utterances int    `json:"utterances"`
	Dimensions int    `json:"dimensions"`
}
