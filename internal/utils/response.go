package utils

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/types"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(ErrorResponseStruct{
		Status:       status,
		Message:      message,
		Ok:           false,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		URL:          c.OriginalURL(),
		Type:         errorType,
		VersionError: status == fiber.StatusConflict,
	})
}

// VersionErrorResponse sends a site_version conflict error (409)
func VersionErrorResponse(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "E_VERSION - Refresh and reconcile with current version and retry."
	}
	return ErrorResponse(c, message, fiber.StatusConflict, "version")
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusNotFound, types.KindNotFound.String())
}

// EngineErrorResponse answers with the status of err's kind. Errors without
// a kind are internal.
func EngineErrorResponse(c *fiber.Ctx, err error) error {
	var custom *types.CustomError
	if errors.As(err, &custom) {
		return ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ErrorResponse(c, fe.Message, fe.Code, "http")
	}

	kind := types.KindOf(err)
	if kind == types.KindConflict {
		return VersionErrorResponse(c, err.Error())
	}
	return ErrorResponse(c, err.Error(), kind.HTTPStatus(), kind.String())
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status       int    `json:"status"`
	Message      string `json:"message"`
	Ok           bool   `json:"ok"`
	Timestamp    string `json:"timestamp"`
	URL          string `json:"url"`
	Type         string `json:"type,omitempty"`
	VersionError bool   `json:"versionError,omitempty"`
}

// PageResponseStruct defines the schema for paged list responses
type PageResponseStruct struct {
	Ok     bool        `json:"ok"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Items  interface{} `json:"items"`
}
