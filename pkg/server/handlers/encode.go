package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/semroute/pkg/encoder"
	"github.com/soundprediction/semroute/pkg/server/dto"
	"github.com/soundprediction/semroute/pkg/types"
)

type dimensioned interface {
	Dimensions() int
}

// EncodeHandler handles encode and fit requests
type EncodeHandler struct {
	encoder encoder.Encoder
	logger  *slog.Logger
}

// NewEncodeHandler creates a new encode handler
func NewEncodeHandler(enc encoder.Encoder, logger *slog.Logger) *EncodeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EncodeHandler{
		encoder: enc,
		logger:  logger,
	}
}

// Encode handles POST /api/v1/encode
func (h *EncodeHandler) Encode(c *gin.Context) {
	if h.encoder == nil {
		writeError(c, http.StatusServiceUnavailable, "encoder_unavailable", "encoder not configured")
		return
	}

	var req dto.EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	embeddings, err := h.encoder.Encode(c.Request.Context(), req.Documents)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Encode request failed",
			"request_id", c.GetString(RequestIDKey),
			"documents", len(req.Documents),
			"error", err)
		writeEncoderError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.EncodeResponse{
		Encoder:    h.encoder.Name(),
		Dimensions: dimensionsOf(h.encoder, embeddings),
		Embeddings: embeddings,
	})
}

// Fit handles POST /api/v1/fit
func (h *EncodeHandler) Fit(c *gin.Context) {
	fitter, ok := h.encoder.(encoder.Fitter)
	if !ok {
		writeError(c, http.StatusNotImplemented, "not_supported", "encoder does not support fitting")
		return
	}

	var req dto.FitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := fitter.Fit(req.Routes); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Fit request failed",
			"request_id", c.GetString(RequestIDKey),
			"routes", len(req.Routes),
			"error", err)
		writeEncoderError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FitResponse{
		Encoder:    h.encoder.Name(),
		Routes:     len(req.Routes),
		Utterances: len(types.Utterances(req.Routes)),
		Dimensions: dimensionsOf(h.encoder, nil),
	})
}

func dimensionsOf(enc encoder.Encoder, embeddings [][]float32) int {
	if len(embeddings) > 0 {
		return len(embeddings[0])
	}
	if d, ok := enc.(dimensioned); ok {
		return d.Dimensions()
	}
	return 0
}

// StatusForError maps an encoder error to an HTTP status code.
func StatusForError(err error) int {
	switch encoder.KindOf(err) {
	case encoder.KindEmptyInput:
		return http.StatusBadRequest
	case encoder.KindNotFitted:
		return http.StatusConflict
	case encoder.KindNoEmbeddingReturned, encoder.KindCallFailed:
		return http.StatusBadGateway
	case encoder.KindNotInitialized:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEncoderError(c *gin.Context, err error) {
	code := "internal_error"
	if kind := encoder.KindOf(err); kind != "" {
		code = string(kind)
	}
	var encErr *encoder.Error
	msg := err.Error()
	if errors.As(err, &encErr) && encErr.Msg != "" {
		// Causes are logged, not returned.
		msg = encErr.Msg
	}
	writeError(c, StatusForError(err), code, msg)
}

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}
