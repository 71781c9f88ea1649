package http

import (
	"errors"
	"net/http"
	"time"

	"aiquiz-service/internal/domain"
	"aiquiz-service/internal/infra/pdf"
	"aiquiz-service/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the gin context key holding the request id.
const ContextKeyRequestID = "request_id"

// Response is the JSON envelope of every REST endpoint.
type Response struct {
	Data     any        `json:"data"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ErrCode identifies an API error independently of its message.
type ErrCode string

const (
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrExtraction      ErrCode = "EXTRACTION_FAILED"
	ErrGeneration      ErrCode = "GENERATION_FAILED"
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrNotReady        ErrCode = "NOT_READY"
	ErrUnavailable     ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal        ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns the default message for code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Check the request fields."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrFileRequired:
		return "At least one file upload is required."
	case ErrFileTooLarge:
		return "Upload exceeds the size limit."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrExtraction:
		return "Could not extract content from the URL."
	case ErrGeneration:
		return "Content generation failed. Try again."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource is in use."
	case ErrForbidden:
		return "Host key required."
	case ErrNotReady:
		return "Resource is not ready yet."
	case ErrUnavailable:
		return "Feature is not configured on this server."
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}

// Success sends data with statusCode.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Data: data, Metadata: buildMetadata(c)})
}

// Fail sends an error envelope with the default message of code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	FailWithMessage(c, statusCode, code, GetMessage(code))
}

func FailWithMessage(c *gin.Context, statusCode int, code ErrCode, message string) {
	c.JSON(statusCode, Response{
		Error:    &ErrorBody{Code: code, Message: message},
		Metadata: buildMetadata(c),
	})
}

// FailWithFields sends a validation failure with per-field messages.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, Response{
		Error:    &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields},
		Metadata: buildMetadata(c),
	})
}

// FailErr maps a service error onto a status and code.
func FailErr(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		Fail(c, status, code)
		return
	}
	FailWithMessage(c, status, code, err.Error())
}

func classify(err error) (int, ErrCode) {
	var (
		ingestErr  *domain.IngestionError
		extractErr *domain.ExtractionError
		genErr     *domain.GenerationError
	)
	switch {
	case errors.Is(err, domain.ErrRasterizerUnavailable):
		return http.StatusServiceUnavailable, ErrUnavailable
	case errors.Is(err, domain.ErrUnsupportedFormat), errors.As(err, &ingestErr):
		return http.StatusUnsupportedMediaType, ErrUnsupportedFile
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity, ErrExtraction
	case errors.As(err, &genErr):
		return http.StatusBadGateway, ErrGeneration
	case errors.Is(err, domain.ErrInvalidDeck), errors.Is(err, domain.ErrInvalidQuestion), errors.Is(err, domain.ErrInvalidImage):
		return http.StatusUnprocessableEntity, ErrValidation
	case errors.Is(err, domain.ErrDeckNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, domain.ErrHostKeyMismatch):
		return http.StatusForbidden, ErrForbidden
	case errors.Is(err, domain.ErrHostAttached), errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict, ErrConflict
	case errors.Is(err, domain.ErrSessionNotComplete), errors.Is(err, domain.ErrFinalsNotReady), errors.Is(err, report.ErrMissingArtifact):
		return http.StatusConflict, ErrNotReady
	case errors.Is(err, domain.ErrReadOnlyDecks), errors.Is(err, domain.ErrGenerationDisabled), errors.Is(err, pdf.ErrFontRequired):
		return http.StatusServiceUnavailable, ErrUnavailable
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}

// RequestIDMiddleware tags every request with X-Request-ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

func buildMetadata(c *gin.Context) Metadata {
	id := c.GetString(ContextKeyRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	return Metadata{RequestID: id, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}
