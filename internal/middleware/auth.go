package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/services"
	"github.com/localnerve/minisitedb/internal/types"
)

// LocalActor is the fiber local holding the acting user id
const LocalActor = "actor"

// ActorHeader carries the acting user id when the authorizer is disabled
const ActorHeader = "X-Actor-Id"

const authErrorType = "minisite.authorization.user"

// AuthUser resolves the acting user from the authorizer session cookie, or
// from the X-Actor-Id header when authorization is disabled.
func AuthUser(cfg *config.Config) fiber.Handler {
	if !cfg.AuthRequired {
		return actorFromHeader
	}
	return func(c *fiber.Ctx) error {
		return authorize(c, cfg, []string{"user"})
	}
}

// OptionalUser resolves the acting user like AuthUser when the request
// carries credentials. Requests without any pass through with no actor.
func OptionalUser(cfg *config.Config) fiber.Handler {
	required := AuthUser(cfg)
	return func(c *fiber.Ctx) error {
		if cfg.AuthRequired && c.Cookies("cookie_session") == "" {
			return c.Next()
		}
		if !cfg.AuthRequired && strings.TrimSpace(c.Get(ActorHeader)) == "" {
			return c.Next()
		}
		return required(c)
	}
}

// Actor returns the acting user id stored by AuthUser
func Actor(c *fiber.Ctx) string {
	actor, _ := c.Locals(LocalActor).(string)
	return actor
}

func actorFromHeader(c *fiber.Ctx) error {
	actor := strings.TrimSpace(c.Get(ActorHeader))
	if actor == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Actor header %q not found", ActorHeader),
			Type:    authErrorType,
		}
	}
	c.Locals(LocalActor, actor)
	return c.Next()
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, cfg *config.Config, roles []string) error {
	if !services.IsAuthorizerInitialized() {
		if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname()); err != nil {
			return &types.CustomError{
				Code:    fiber.StatusServiceUnavailable,
				Message: fmt.Sprintf("Authorizer unavailable: %v", err),
				Type:    authErrorType,
			}
		}
	}

	// Get session cookie
	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    authErrorType,
		}
	}

	// Validate session
	actor, err := services.ValidateSession(session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    authErrorType,
		}
	}

	c.Locals(LocalActor, actor)
	return c.Next()
}
