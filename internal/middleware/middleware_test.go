package middleware_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/middleware"
	"github.com/localnerve/minisitedb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.VersionMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(middleware.LocalAPIVersion).(string))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"", "1.0.0"},
		{"1", "1.0.0"},
		{"1.0", "1.0.0"},
		{"2.1.0", "2.1.0"},
	}
	for _, tt := range tests {
		t.Run("header "+tt.header, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Api-Version", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Header.Get("X-Api-Version"))
		})
	}
}

func TestAuthUserFromHeader(t *testing.T) {
	var caught error
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			caught = err
			return c.SendStatus(fiber.StatusTeapot)
		},
	})
	app.Get("/", middleware.AuthUser(&config.Config{AuthRequired: false}), func(c *fiber.Ctx) error {
		return c.SendString(middleware.Actor(c))
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(middleware.ActorHeader, " user-7 ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "user-7", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	var custom *types.CustomError
	require.ErrorAs(t, caught, &custom)
	assert.Equal(t, fiber.StatusForbidden, custom.Code)
	assert.Equal(t, "minisite.authorization.user", custom.Type)
}

func TestOptionalUser(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.OptionalUser(&config.Config{AuthRequired: false}), func(c *fiber.Ctx) error {
		return c.SendString("actor=" + middleware.Actor(c))
	})

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"anonymous", "", "actor="},
		{"blank header", "   ", "actor="},
		{"actor header", "user-7", "actor=user-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set(middleware.ActorHeader, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}
