package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/localnerve/minisitedb/internal/document"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/services"
	"github.com/localnerve/minisitedb/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const actor = "user-1"

func newCoordinator(t *testing.T) (*services.Coordinator, *gorm.DB) {
	t.Helper()
	db := testhelpers.NewSQLiteDB(t)
	return services.NewCoordinator(db, services.NewMemoryPointerCache(time.Minute)), db
}

func run(t *testing.T, c *services.Coordinator, kind services.OperationKind, id string, fields document.Fields) *services.OperationResult {
	t.Helper()
	result, err := c.RunOperation(context.Background(), services.OperationRequest{
		Kind:      kind,
		ContentID: id,
		Fields:    fields,
		Actor:     actor,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	return result
}

func newDraft(t *testing.T, c *services.Coordinator, fields document.Fields) *services.OperationResult {
	t.Helper()
	result := run(t, c, services.OpNewDraft, "", fields)
	require.NotNil(t, result.Minisite)
	require.NotNil(t, result.Version)
	return result
}

// sections splits a stored document into its top-level sections
func sections(t *testing.T, raw models.JSON) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw.Bytes(), &out))
	return out
}

func hero(t *testing.T, raw models.JSON) document.Hero {
	t.Helper()
	var h document.Hero
	require.NoError(t, json.Unmarshal(sections(t, raw)[document.SectionHero], &h))
	return h
}
