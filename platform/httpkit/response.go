// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"musicaldb_backend/platform/apperr"
	"musicaldb_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details interface{}            `json:"details,omitempty"`
	Errors  []validator.FieldError `json:"errors,omitempty"`
}

const msgInternal = "internal server error"

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// ValidationError renders field-level failures as {error, errors:[{field,message}]}.
// Falls back to a plain 400 when err carries no field errors.
func ValidationError(c *gin.Context, message string, err error) {
	fields := validator.FieldErrors(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Errors: fields})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError maps domain errors to HTTP responses. Untyped errors become a
// generic 500 so internal causes never reach the client.
// Returns true if an error was handled.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := apperr.As(err); ok {
		message := domainErr.Message
		if message == "" {
			message = msgInternal
		}
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{Error: message, Details: domainErr.Details})
		return true
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
	return true
}
