package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/localnerve/minisitedb/internal/document"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/services"
	"github.com/localnerve/minisitedb/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNewDraftCreatesVersionAndRecord(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	result := newDraft(t, c, document.Fields{
		"business_name": {"Acme Plumbing"},
		"business_city": {"Springfield"},
		"seo_title":     {"Acme | Plumbers"},
		"contact_lat":   {"39.78"},
		"contact_lng":   {"-89.65"},
	})

	rec, version := result.Minisite, result.Version
	assert.Len(t, rec.ID, 32)
	assert.Equal(t, fmt.Sprintf("/account/sites/%s/edit?draft_created=1", rec.ID), result.Redirect)

	assert.Equal(t, 1, version.VersionNumber)
	assert.Equal(t, models.StatusDraft, version.Status)
	assert.Equal(t, "Initial Draft", version.Label)
	assert.Equal(t, actor, version.CreatedBy)

	assert.Equal(t, uint64(1), rec.SiteVersion)
	require.NotNil(t, rec.CurrentVersionID)
	assert.Equal(t, version.ID, *rec.CurrentVersionID)
	assert.Equal(t, models.StatusDraft, rec.Status)
	assert.Equal(t, models.StatusDraft, rec.PublishStatus)
	assert.Equal(t, actor, rec.OwnerID)
	assert.Equal(t, "Acme | Plumbers", rec.Title)
	assert.Equal(t, "Acme Plumbing", rec.Name)
	assert.Equal(t, services.DefaultTemplate, rec.SiteTemplate)
	assert.Equal(t, "biz-"+rec.ID[:8]+"/loc-"+rec.ID[8:16], rec.Slug)

	stored, err := c.Records().Reload(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Geo)
	assert.InDelta(t, 39.78, stored.Geo.Lat, 1e-9)
	assert.InDelta(t, -89.65, stored.Geo.Lng, 1e-9)

	v, err := c.Versions().FindByID(ctx, version.ID)
	require.NoError(t, err)
	require.NotNil(t, v.Geo)
	assert.InDelta(t, 39.78, v.Geo.Lat, 1e-9)
}

func TestNewDraftDefaultsWithoutFields(t *testing.T) {
	c, _ := newCoordinator(t)

	result := newDraft(t, c, nil)
	assert.Equal(t, services.DefaultTitle, result.Minisite.Title)
	assert.Equal(t, services.DefaultPalette, result.Minisite.Palette)
	assert.Equal(t, services.DefaultLocale, result.Minisite.DefaultLocale)
	assert.Nil(t, result.Minisite.Geo)

	// The skeleton carries the editable sections
	secs := sections(t, result.Version.SiteJSON)
	for _, key := range []string{document.SectionContact, document.SectionHero, document.SectionSEO} {
		assert.Contains(t, secs, key)
	}
}

func TestNewDraftExistingIDIsInvalid(t *testing.T) {
	c, _ := newCoordinator(t)
	first := newDraft(t, c, nil)

	_, err := c.RunOperation(context.Background(), services.OperationRequest{
		Kind:      services.OpNewDraft,
		ContentID: first.Minisite.ID,
		Actor:     actor,
	})
	require.Error(t, err)
	assert.True(t, types.IsInvalidOperation(err))
}

func TestRunOperationRejectsBadRequests(t *testing.T) {
	c, _ := newCoordinator(t)

	tests := []struct {
		name string
		req  services.OperationRequest
	}{
		{"unknown kind", services.OperationRequest{Kind: "delete_everything", ContentID: "abc", Actor: actor}},
		{"missing kind", services.OperationRequest{ContentID: "abc", Actor: actor}},
		{"missing actor", services.OperationRequest{Kind: services.OpEditDraft, ContentID: "abc"}},
		{"blank actor", services.OperationRequest{Kind: services.OpNewDraft, Actor: "   "}},
		{"missing id", services.OperationRequest{Kind: services.OpPublishDraft, Actor: actor}},
		{"id with slash", services.OperationRequest{Kind: services.OpEditDraft, ContentID: "a/b", Actor: actor}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.RunOperation(context.Background(), tt.req)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, types.IsInvalidOperation(err), "got %v", err)
		})
	}
}

func TestEditMissingRecordIsNotFound(t *testing.T) {
	c, _ := newCoordinator(t)

	_, err := c.RunOperation(context.Background(), services.OperationRequest{
		Kind:      services.OpEditDraft,
		ContentID: "doesnotexist",
		Fields:    document.Fields{"hero_heading": {"B"}},
		Actor:     actor,
	})
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestEditDraftMergesOnlySubmittedSections(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	created := newDraft(t, c, document.Fields{
		"business_name":  {"Acme"},
		"hero_heading":   {"A"},
		"hero_badge":     {"Since 1999"},
		"hero_cta1_text": {"Call"},
	})
	id := created.Minisite.ID
	before := sections(t, created.Version.SiteJSON)

	result := run(t, c, services.OpEditDraft, id, document.Fields{
		"hero_heading":  {"B"},
		"not_a_field":   {"dropped"},
		"version_label": {"Hero copy"},
	})
	assert.Equal(t, fmt.Sprintf("/account/sites/%s/edit?draft_saved=1", id), result.Redirect)

	v := result.Version
	assert.Equal(t, 2, v.VersionNumber)
	assert.Equal(t, models.StatusDraft, v.Status)
	assert.Equal(t, "Hero copy", v.Label)

	h := hero(t, v.SiteJSON)
	assert.Equal(t, "B", h.Heading)
	assert.Equal(t, "Since 1999", h.Badge)
	require.NotEmpty(t, h.CTAs)
	assert.Equal(t, "Call", h.CTAs[0].Text)

	after := sections(t, v.SiteJSON)
	assert.NotContains(t, after, "not_a_field")
	for key, raw := range before {
		if key == document.SectionHero {
			continue
		}
		assert.JSONEq(t, string(raw), string(after[key]), "section %s changed", key)
	}

	latest, err := c.Versions().FindLatest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, v.ID, latest.ID)
}

func TestEditDraftDefaultLabelAndPreviewSync(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	result := run(t, c, services.OpEditDraft, id, document.Fields{
		"seo_title":     {"Fresh title"},
		"business_city": {"Shelbyville"},
		"contact_lat":   {"10.5"},
		"contact_lng":   {"20.25"},
	})
	assert.Equal(t, "Version 2", result.Version.Label)

	// Never published, so the record preview follows the draft
	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Fresh title", rec.Title)
	assert.Equal(t, "Shelbyville", rec.City)
	assert.Equal(t, uint64(1), rec.SiteVersion)
	require.NotNil(t, rec.Geo)
	assert.InDelta(t, 10.5, rec.Geo.Lat, 1e-9)
	assert.InDelta(t, 20.25, rec.Geo.Lng, 1e-9)
}

func TestEditPublishedDoesNotTouchRecord(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	id := newDraft(t, c, document.Fields{"seo_title": {"Live title"}, "business_name": {"Acme"}}).Minisite.ID
	run(t, c, services.OpPublishDraft, id, nil)

	live, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)

	result := run(t, c, services.OpEditPublished, id, document.Fields{
		"seo_title":     {"Pending title"},
		"business_name": {"Changed"},
	})
	assert.Equal(t, models.StatusDraft, result.Version.Status)

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Live title", rec.Title)
	assert.Equal(t, "Acme", rec.Name)
	assert.Equal(t, live.SiteVersion, rec.SiteVersion)
	assert.Equal(t, *live.CurrentVersionID, *rec.CurrentVersionID)
	assert.JSONEq(t, string(live.SiteJSON.Bytes()), string(rec.SiteJSON.Bytes()))

	n, err := c.Versions().CountByMinisite(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEditKindMustMatchPublishState(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	edit := func(kind services.OperationKind) error {
		_, err := c.RunOperation(ctx, services.OperationRequest{
			Kind:      kind,
			ContentID: id,
			Fields:    document.Fields{"hero_heading": {"B"}},
			Actor:     actor,
		})
		return err
	}

	err := edit(services.OpEditPublished)
	assert.True(t, types.IsInvalidOperation(err), "got %v", err)

	run(t, c, services.OpPublishDraft, id, nil)
	err = edit(services.OpEditDraft)
	assert.True(t, types.IsInvalidOperation(err), "got %v", err)

	n, err := c.Versions().CountByMinisite(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOperationsRequireOwner(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	created := newDraft(t, c, document.Fields{"seo_title": {"Mine"}})
	id := created.Minisite.ID

	for _, kind := range []services.OperationKind{services.OpEditDraft, services.OpPublishDraft} {
		_, err := c.RunOperation(ctx, services.OperationRequest{
			Kind:      kind,
			ContentID: id,
			Fields:    document.Fields{"seo_title": {"Taken"}},
			Actor:     "mallory",
		})
		assert.True(t, types.IsForbidden(err), "%s: got %v", kind, err)
	}

	run(t, c, services.OpPublishDraft, id, nil)
	_, err := c.RunOperation(ctx, services.OperationRequest{
		Kind:      services.OpEditPublished,
		ContentID: id,
		Fields:    document.Fields{"seo_title": {"Taken"}},
		Actor:     "mallory",
	})
	assert.True(t, types.IsForbidden(err), "got %v", err)

	_, err = c.Rollback(ctx, id, created.Version.ID, "mallory")
	assert.True(t, types.IsForbidden(err), "got %v", err)

	n, err := c.Versions().CountByMinisite(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Mine", rec.Title)
	assert.Equal(t, actor, rec.UpdatedBy)
}

func TestOperationLogNamesGeneratedID(t *testing.T) {
	var buf bytes.Buffer
	saved := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = saved })

	c, _ := newCoordinator(t)
	id := newDraft(t, c, nil).Minisite.ID

	type entry struct {
		Operation  string `json:"operation"`
		MinisiteID string `json:"minisite_id"`
		Actor      string `json:"actor"`
	}
	var logged []entry
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e entry
		require.NoError(t, json.Unmarshal(raw, &e))
		if e.Operation != "" {
			logged = append(logged, e)
		}
	}
	require.Len(t, logged, 1)
	assert.Equal(t, entry{Operation: string(services.OpNewDraft), MinisiteID: id, Actor: actor}, logged[0])
}

func TestPublishFirstDraft(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	created := newDraft(t, c, document.Fields{"seo_title": {"Acme"}})
	id := created.Minisite.ID

	result := run(t, c, services.OpPublishDraft, id, nil)
	assert.Equal(t, fmt.Sprintf("/account/sites/%s?published=1", id), result.Redirect)

	v1, err := c.Versions().FindByID(ctx, created.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, v1.Status)
	assert.NotNil(t, v1.PublishedAt)

	rec, err := c.Records().FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec.CurrentVersionID)
	assert.Equal(t, v1.ID, *rec.CurrentVersionID)
	assert.Equal(t, models.StatusPublished, rec.PublishStatus)
	assert.Equal(t, models.StatusPublished, rec.Status)
	assert.NotNil(t, rec.PublishedAt)
	assert.Equal(t, uint64(2), rec.SiteVersion)
}

func TestPublishLatestDraftOverPublished(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	created := newDraft(t, c, document.Fields{"seo_title": {"One"}})
	id := created.Minisite.ID
	run(t, c, services.OpPublishDraft, id, nil)

	v2 := run(t, c, services.OpEditPublished, id, document.Fields{"seo_title": {"Two"}}).Version
	result := run(t, c, services.OpPublishDraft, id, nil)
	assert.Equal(t, v2.ID, result.Version.ID)

	published, err := c.Versions().FindByID(ctx, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, published.Status)

	rec, err := c.Records().FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, *rec.CurrentVersionID)
	assert.Equal(t, "Two", rec.Title)
	assert.JSONEq(t, string(published.SiteJSON.Bytes()), string(rec.SiteJSON.Bytes()))

	// History is additive: v1 keeps its published status
	v1, err := c.Versions().FindByID(ctx, created.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, v1.Status)

	latestPublished, err := c.Versions().FindPublished(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latestPublished.ID)
}

func TestPublishTwiceDoesNotDuplicate(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	run(t, c, services.OpPublishDraft, id, nil)
	_, err := c.RunOperation(ctx, services.OperationRequest{Kind: services.OpPublishDraft, ContentID: id, Actor: actor})
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err), "got %v", err)

	versions, err := c.Versions().ListByMinisite(ctx, id, 0, 0)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, models.StatusPublished, versions[0].Status)

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.SiteVersion)
}

func TestPublishSkipsSupersededDrafts(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	created := newDraft(t, c, nil)
	id := created.Minisite.ID
	v2 := run(t, c, services.OpEditDraft, id, document.Fields{"seo_title": {"Two"}}).Version

	result := run(t, c, services.OpPublishDraft, id, nil)
	assert.Equal(t, v2.ID, result.Version.ID)

	// v1 is still a draft but older than the live version
	_, err := c.RunOperation(ctx, services.OperationRequest{Kind: services.OpPublishDraft, ContentID: id, Actor: actor})
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err), "got %v", err)

	v1, err := c.Versions().FindByID(ctx, created.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, v1.Status)

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, *rec.CurrentVersionID)
}

func TestPublishWithoutVersionsIsIntegrityViolation(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	rec, err := c.InsertRecord(ctx, &models.Minisite{
		BusinessSlug:  "orphan",
		OwnerID:       actor,
		CreatedBy:     actor,
		UpdatedBy:     actor,
		Status:        models.StatusDraft,
		PublishStatus: models.StatusDraft,
	})
	require.NoError(t, err)

	_, err = c.RunOperation(ctx, services.OperationRequest{Kind: services.OpPublishDraft, ContentID: rec.ID, Actor: actor})
	assert.True(t, types.IsIntegrityViolation(err), "got %v", err)

	_, err = c.RunOperation(ctx, services.OperationRequest{Kind: services.OpPublishDraft, ContentID: "missing", Actor: actor})
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestFailedNewDraftLeavesNoVersion(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	// Both ids derive the same default slug pair
	first := "0123456789abcdef0000000000000000"
	second := "0123456789abcdef1111111111111111"
	run(t, c, services.OpNewDraft, first, nil)

	_, err := c.RunOperation(ctx, services.OperationRequest{Kind: services.OpNewDraft, ContentID: second, Actor: actor})
	require.Error(t, err)
	assert.True(t, types.IsConflict(err), "got %v", err)

	n, err := c.Versions().CountByMinisite(ctx, second)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = c.Records().Reload(ctx, second)
	assert.True(t, types.IsNotFound(err))
}

func TestEditWithCorruptDocumentRollsBack(t *testing.T) {
	c, db := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	require.NoError(t, db.Exec("UPDATE minisite_versions SET site_json = ? WHERE minisite_id = ?", "{broken", id).Error)

	_, err := c.RunOperation(ctx, services.OperationRequest{
		Kind:      services.OpEditDraft,
		ContentID: id,
		Fields:    document.Fields{"hero_heading": {"B"}},
		Actor:     actor,
	})
	require.Error(t, err)
	assert.True(t, types.IsIntegrityViolation(err), "got %v", err)

	n, err := c.Versions().CountByMinisite(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConcurrentPublishIsSerialized(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = c.RunOperation(ctx, services.OperationRequest{Kind: services.OpPublishDraft, ContentID: id, Actor: actor})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, notFound int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case types.IsNotFound(err) || types.IsConflict(err):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notFound)

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.SiteVersion)
}

func TestConcurrentEditsNumberVersionsContiguously(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	const writers = 50
	var conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			for {
				_, err := c.RunOperation(ctx, services.OperationRequest{
					Kind:      services.OpEditDraft,
					ContentID: id,
					Fields:    document.Fields{"hero_heading": {fmt.Sprintf("writer %d", i)}},
					Actor:     actor,
				})
				if types.IsConflict(err) {
					conflicts.Add(1)
					continue
				}
				return err
			}
		})
	}
	require.NoError(t, g.Wait())

	versions, err := c.Versions().ListByMinisite(ctx, id, 0, 0)
	require.NoError(t, err)
	require.Len(t, versions, writers+1)

	numbers := make([]int, 0, len(versions))
	for _, v := range versions {
		numbers = append(numbers, v.VersionNumber)
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		assert.Equal(t, i+1, n)
	}
	t.Logf("retried %d conflicts", conflicts.Load())
}

func TestRollbackCopiesSourceAsDraft(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	created := newDraft(t, c, document.Fields{"hero_heading": {"A"}, "seo_title": {"First"}})
	id := created.Minisite.ID
	run(t, c, services.OpPublishDraft, id, nil)
	run(t, c, services.OpEditPublished, id, document.Fields{"hero_heading": {"B"}})

	result, err := c.Rollback(ctx, id, created.Version.ID, actor)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, fmt.Sprintf("/account/sites/%s/edit?draft_saved=1", id), result.Redirect)

	draft := result.Version
	assert.Equal(t, 3, draft.VersionNumber)
	assert.Equal(t, models.StatusDraft, draft.Status)
	assert.Equal(t, "Rollback to v1", draft.Label)
	assert.Equal(t, "Rollback from version 1", draft.Comment)
	assert.Equal(t, actor, draft.CreatedBy)
	require.NotNil(t, draft.SourceVersionID)
	assert.Equal(t, created.Version.ID, *draft.SourceVersionID)
	assert.Equal(t, "A", hero(t, draft.SiteJSON).Heading)
	assert.Equal(t, "First", draft.Title)

	// The live pointer waits for an explicit publish
	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, created.Version.ID, *rec.CurrentVersionID)

	published := run(t, c, services.OpPublishDraft, id, nil)
	assert.Equal(t, draft.ID, published.Version.ID)
}

func TestRollbackRejectsForeignOrMissingVersion(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	a := newDraft(t, c, nil)
	b := newDraft(t, c, nil)

	_, err := c.Rollback(ctx, a.Minisite.ID, b.Version.ID, actor)
	assert.True(t, types.IsNotFound(err), "got %v", err)

	_, err = c.Rollback(ctx, a.Minisite.ID, 9999, actor)
	assert.True(t, types.IsNotFound(err), "got %v", err)

	_, err = c.Rollback(ctx, "missing", a.Version.ID, actor)
	assert.True(t, types.IsNotFound(err), "got %v", err)

	_, err = c.Rollback(ctx, a.Minisite.ID, a.Version.ID, "")
	assert.True(t, types.IsInvalidOperation(err), "got %v", err)
}

func TestSaveRecordOptimisticLock(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	stale := *rec

	rec.Title = "Saved once"
	saved, err := c.SaveRecord(ctx, rec, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), saved.SiteVersion)
	assert.Equal(t, "Saved once", saved.Title)

	stale.Title = "Lost update"
	_, err = c.SaveRecord(ctx, &stale, stale.SiteVersion)
	require.Error(t, err)
	assert.True(t, types.IsConflict(err), "got %v", err)

	// A failed attempt leaves the row as it was
	after, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Saved once", after.Title)
	assert.Equal(t, uint64(2), after.SiteVersion)

	stale.ID = "missing"
	_, err = c.SaveRecord(ctx, &stale, 1)
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestConcurrentSaveRecordLosesNoUpdates(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	id := newDraft(t, c, nil).Minisite.ID

	const writers = 50
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			for {
				rec, err := c.Records().Reload(ctx, id)
				if err != nil {
					return err
				}
				var count int
				if rec.PostalCode != "" {
					if _, err := fmt.Sscanf(rec.PostalCode, "%d", &count); err != nil {
						return err
					}
				}
				rec.PostalCode = fmt.Sprintf("%d", count+1)
				rec.UpdatedBy = fmt.Sprintf("writer-%d", i)

				_, err = c.SaveRecord(ctx, rec, rec.SiteVersion)
				if types.IsConflict(err) {
					continue
				}
				return err
			}
		})
	}
	require.NoError(t, g.Wait())

	rec, err := c.Records().Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", writers), rec.PostalCode)
	assert.Equal(t, uint64(writers+1), rec.SiteVersion)
}
