package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports service health
type HealthHandler struct {
	Cfg   *config.Config
	DB    *gorm.DB
	Cache services.PointerCache
}

// Health godoc
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(c.UserContext(), h.Cfg, h.DB, h.Cache)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
