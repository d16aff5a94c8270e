package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/middleware"
	"github.com/localnerve/minisitedb/internal/types"
)

// Register mounts the API routes under /api
func Register(app *fiber.App, cfg *config.Config, minisites *MinisiteHandler, health *HealthHandler) {
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	api.Get("/health", health.Health)

	auth := middleware.AuthUser(cfg)
	optional := middleware.OptionalUser(cfg)

	// Published records are public, drafts only show to their owner
	api.Get("/minisites/:id", optional, minisites.GetMinisite)
	api.Get("/minisites/:id/versions", auth, minisites.ListVersions)

	// Actor routes
	api.Post("/minisites/:id/operations/:kind", auth, minisites.RunOperation)
	api.Post("/minisites/:id/rollback/:versionId", auth, minisites.Rollback)
	api.Put("/minisites/:id/slugs", auth, minisites.UpdateSlugs)
	api.Get("/owners/:ownerId/minisites", auth, minisites.ListOwnerMinisites)
}

// NotFound is the terminal handler for unmatched routes
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   "[404] Resource Not Found",
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// ErrorHandler handles errors globally
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var fe *fiber.Error
	var ce *types.CustomError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &ce):
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
	default:
		kind := types.KindOf(err)
		code = kind.HTTPStatus()
		errorType = kind.String()
	}

	// Check for version errors
	versionError := code == fiber.StatusConflict
	if versionError {
		errorType = "version"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":       code,
		"message":      message,
		"ok":           false,
		"versionError": versionError,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"url":          c.OriginalURL(),
		"type":         errorType,
	})
}
