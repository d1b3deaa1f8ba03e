package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"imagedetect/internal/logger"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse builds an error body. Server-side failures never echo
// the underlying error text.
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	errorStr := message
	if err != nil && code < http.StatusInternalServerError {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// correlationID reuses the request ID set by the RequestID middleware.
func correlationID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleError logs err with a correlation ID and writes the error body.
func HandleError(c echo.Context, log *logger.Logger, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code, correlationID(c))

	if code >= http.StatusInternalServerError {
		log.Error("API Error [%s] %s %s: %s: %v", resp.CorrelationID, c.Request().Method, c.Request().URL.Path, message, err)
	} else {
		log.Warning("API Error [%s] %s %s: %s: %v", resp.CorrelationID, c.Request().Method, c.Request().URL.Path, message, err)
	}
	return c.JSON(code, resp)
}

// HTTPErrorHandler renders errors escaping handlers and middleware (404,
// 405, 413 from the body limit, recovered panics) in the ErrorResponse
// shape.
func HTTPErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = http.StatusText(code)
			if m, ok := he.Message.(string); ok {
				message = m
			}
		}

		if err := HandleError(c, log, err, message, code); err != nil {
			log.Error("Failed to write error response: %v", err)
		}
	}
}
