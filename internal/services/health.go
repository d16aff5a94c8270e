package services

import (
	"context"
	"fmt"

	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/utils"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Pinger is implemented by caches backed by a remote store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Cache        string            `json:"cache"`
	Authorizer   string            `json:"authorizer"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(component, detailKey string, err error) {
	r.Status = "unhealthy"
	r.Details[detailKey] = err.Error()
	msg := fmt.Sprintf("%s failed: %v", component, err)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
	} else {
		r.ErrorMessage += "; " + msg
	}
	log.Warn().Err(err).Str("component", component).Msg("Health check failed")
}

// HealthCheck performs a comprehensive health check of the service
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, cache PointerCache) HealthCheckResult {
	result := HealthCheckResult{
		Status:     "healthy",
		Cache:      "disabled",
		Authorizer: "disabled",
		Details:    make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.fail("Database connection", "database_error", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.fail("Database ping", "database_ping_error", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBAppDatabase
	}

	// Check the pointer cache when it is remote
	if pinger, ok := cache.(Pinger); ok && cfg.RedisURL != "" {
		if err := pinger.Ping(ctx); err != nil {
			result.Cache = "unreachable"
			result.fail("Cache ping", "cache_error", err)
		} else {
			result.Cache = "ok"
		}
	}

	// Check Authorizer connectivity
	if cfg.AuthRequired {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			result.Authorizer = "unreachable"
			result.fail("Authorizer ping", "authorizer_error", err)
		} else {
			result.Authorizer = "ok"
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	}

	if result.Status == "healthy" {
		log.Debug().Msg("Health check passed - all systems operational")
	}

	return result
}
