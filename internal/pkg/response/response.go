// internal/pkg/response/response.go
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "billing-service/internal/pkg/errors"
)

// Response defines the standard API response format.
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Result is what services hand back to the HTTP layer.
type Result struct {
	StatusCode int
	Message    string
	Data       interface{}
}

// NewResult builds a Result.
func NewResult(status int, message string, data interface{}) *Result {
	return &Result{StatusCode: status, Message: message, Data: data}
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// Error sends a standardized error response.
// Error text of 5xx failures is not exposed to the client.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// CRITICAL: Abort FIRST before writing response
	c.Abort()

	response := Response{
		Success:    false,
		StatusCode: code,
		Message:    message,
	}

	if err != nil && code < http.StatusInternalServerError {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// Write renders a service Result using the success flag implied by its status.
func Write(c *gin.Context, r *Result) {
	if r.StatusCode >= http.StatusBadRequest {
		Error(c, r.StatusCode, r.Message, nil, r.Data)
		return
	}
	Success(c, r.StatusCode, r.Message, r.Data)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

// MethodNotAllowed sends a 405 response.
func MethodNotAllowed(c *gin.Context) {
	Error(c, http.StatusMethodNotAllowed, "method not allowed", nil)
}

// FromError sends an error response with the status its error kind maps to.
func FromError(c *gin.Context, message string, err error) {
	Error(c, xerrors.StatusCode(err), message, err)
}
