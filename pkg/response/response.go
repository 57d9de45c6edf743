package response

import (
	"errors"
	"net/http"
	"time"

	"flowkora/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id on every response.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// ErrorResponse is the error envelope shared by every endpoint.
type ErrorResponse struct {
	Error     string            `json:"error"`
	ErrorCode string            `json:"error_code"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id"`
	Timestamp string            `json:"timestamp"`
}

func OK(c *gin.Context, data any) { write(c, http.StatusOK, data) }

func Created(c *gin.Context, data any) { write(c, http.StatusCreated, data) }

// NoContent sets 204. Gin flushes the status when the handler returns.
func NoContent(c *gin.Context) {
	tagRequest(c)
	c.Status(http.StatusNoContent)
}

// Error aborts the chain with the envelope for err. Anything that is not an
// *apperror.AppError is reported as SYS_001 without leaking its message.
func Error(c *gin.Context, err error) {
	reqID := tagRequest(c)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, ErrorResponse{
		Error:     appErr.Message,
		ErrorCode: appErr.Code,
		Details:   appErr.Details,
		RequestID: reqID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RequestID returns the id set by the request-id middleware, minting one
// when the middleware did not run.
func RequestID(c *gin.Context) string {
	if s := c.GetString(requestIDKey); s != "" {
		return s
	}
	id := uuid.NewString()
	c.Set(requestIDKey, id)
	return id
}

func write(c *gin.Context, status int, data any) {
	tagRequest(c)
	c.JSON(status, data)
}

func tagRequest(c *gin.Context) string {
	id := RequestID(c)
	c.Header(RequestIDHeader, id)
	return id
}
