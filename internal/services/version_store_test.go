package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/services"
	"github.com/localnerve/minisitedb/internal/testhelpers"
	"github.com/localnerve/minisitedb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveVersion(t *testing.T, s *services.VersionStore, minisiteID, status string) *models.Version {
	t.Helper()
	ctx := context.Background()
	number, err := s.NextVersionNumber(ctx, minisiteID)
	require.NoError(t, err)

	raw, err := models.NewJSON(map[string]interface{}{"hero": map[string]interface{}{"heading": minisiteID}})
	require.NoError(t, err)
	v := &models.Version{
		MinisiteID:    minisiteID,
		VersionNumber: number,
		Status:        status,
		Label:         "label",
		CreatedBy:     "owner",
		SiteJSON:      raw,
		BusinessSlug:  "biz",
		Profile:       models.Profile{Title: "Title"},
	}
	require.NoError(t, s.Save(ctx, v))
	return v
}

func TestNextVersionNumber(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	n, err := s.NextVersionNumber(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	saveVersion(t, s, "m1", models.StatusDraft)
	saveVersion(t, s, "m1", models.StatusDraft)
	saveVersion(t, s, "m2", models.StatusDraft)

	n, err = s.NextVersionNumber(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDuplicateVersionNumberConflicts(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	existing := saveVersion(t, s, "m1", models.StatusDraft)

	err := s.Save(context.Background(), &models.Version{
		MinisiteID:    "m1",
		VersionNumber: existing.VersionNumber,
		Status:        models.StatusDraft,
		CreatedBy:     "owner",
	})
	require.Error(t, err)
	assert.True(t, types.IsConflict(err), "got %v", err)
}

func TestFindLatestByStatus(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	_, err := s.FindLatest(ctx, "m1")
	assert.True(t, types.IsNotFound(err), "got %v", err)

	v1 := saveVersion(t, s, "m1", models.StatusPublished)
	v2 := saveVersion(t, s, "m1", models.StatusDraft)
	v3 := saveVersion(t, s, "m1", models.StatusPublished)

	latest, err := s.FindLatest(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, v3.ID, latest.ID)

	draft, err := s.FindLatestDraft(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, draft.ID)

	published, err := s.FindPublished(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, v3.ID, published.ID)
	assert.NotEqual(t, v1.ID, published.ID)
}

func TestMarkPublishedOnlyOnce(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	ctx := context.Background()
	v := saveVersion(t, s, "m1", models.StatusDraft)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.MarkPublished(ctx, v.ID, at))

	stored, err := s.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)
	assert.WithinDuration(t, at, *stored.PublishedAt, time.Second)

	err = s.MarkPublished(ctx, v.ID, time.Now())
	assert.True(t, types.IsConflict(err), "got %v", err)

	err = s.MarkPublished(ctx, 999, time.Now())
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestGetLatestDraftForEditing(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	_, err := s.GetLatestDraftForEditing(ctx, "m1", "editor")
	assert.True(t, types.IsIntegrityViolation(err), "got %v", err)

	v1 := saveVersion(t, s, "m1", models.StatusDraft)
	got, err := s.GetLatestDraftForEditing(ctx, "m1", "editor")
	require.NoError(t, err)
	assert.Equal(t, v1.ID, got.ID)

	require.NoError(t, s.MarkPublished(ctx, v1.ID, time.Now().UTC()))
	draft, err := s.GetLatestDraftForEditing(ctx, "m1", "editor")
	require.NoError(t, err)
	assert.NotEqual(t, v1.ID, draft.ID)
	assert.Equal(t, 2, draft.VersionNumber)
	assert.Equal(t, models.StatusDraft, draft.Status)
	assert.Equal(t, "Draft from v1", draft.Label)
	assert.Equal(t, "Created from version 1 for editing", draft.Comment)
	assert.Equal(t, "editor", draft.CreatedBy)
	require.NotNil(t, draft.SourceVersionID)
	assert.Equal(t, v1.ID, *draft.SourceVersionID)
	assert.JSONEq(t, string(v1.SiteJSON.Bytes()), string(draft.SiteJSON.Bytes()))
	assert.Equal(t, v1.Profile, draft.Profile)
}

func TestCreateDraftFromVersionCopiesGeo(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	ctx := context.Background()

	source := &models.Version{
		MinisiteID:    "m1",
		VersionNumber: 1,
		Status:        models.StatusPublished,
		CreatedBy:     "owner",
		Geo:           &models.GeoPoint{Lat: 48.8566, Lng: 2.3522},
	}
	require.NoError(t, s.Save(ctx, source))

	draft, err := s.CreateDraftFromVersion(ctx, source, "editor")
	require.NoError(t, err)

	stored, err := s.FindByID(ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Geo)
	assert.InDelta(t, 48.8566, stored.Geo.Lat, 1e-9)
	assert.InDelta(t, 2.3522, stored.Geo.Lng, 1e-9)

	// The copy does not alias the source point
	draft.Geo.Lat = 0
	assert.InDelta(t, 48.8566, source.Geo.Lat, 1e-9)
}

func TestListByMinisite(t *testing.T) {
	s := services.NewVersionStore(testhelpers.NewSQLiteDB(t))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		saveVersion(t, s, "m1", models.StatusDraft)
	}
	saveVersion(t, s, "m2", models.StatusDraft)

	page, err := s.ListByMinisite(ctx, "m1", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].VersionNumber)
	assert.Equal(t, 2, page[1].VersionNumber)

	n, err := s.CountByMinisite(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
