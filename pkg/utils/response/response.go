// Package response defines the JSON envelope for the gateway's REST endpoints
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope every REST endpoint returns
type Response struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// SuccessResponse writes a 200 envelope wrapping data
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse writes an error envelope carrying a broker-style error type
// and a human-readable message.
func ErrorResponse(c echo.Context, httpStatus int, errorType, message string) error {
	return c.JSON(httpStatus, Response{
		Status:    "error",
		ErrorType: errorType,
		Message:   message,
	})
}
