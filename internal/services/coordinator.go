package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/localnerve/minisitedb/internal/document"
	"github.com/localnerve/minisitedb/internal/logging"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OperationKind names a coordinator operation
type OperationKind string

const (
	OpNewDraft      OperationKind = "new_draft"
	OpEditDraft     OperationKind = "edit_draft"
	OpEditPublished OperationKind = "edit_published"
	OpPublishDraft  OperationKind = "publish_draft"
)

// Record defaults for a new minisite
const (
	DefaultTitle    = "Untitled Minisite"
	DefaultTemplate = "v2025"
	DefaultPalette  = "blue"
	DefaultLocale   = "en-US"
)

// OperationRequest is one form submission routed to an operation
type OperationRequest struct {
	Kind      OperationKind   `validate:"required"`
	ContentID string          `validate:"omitempty,max=32,excludesall=/?#%"`
	Fields    document.Fields `validate:"-"`
	Actor     string          `validate:"max=64"`
}

// OperationResult reports a committed operation
type OperationResult struct {
	Success  bool             `json:"success"`
	Redirect string           `json:"redirect"`
	Minisite *models.Minisite `json:"minisite,omitempty"`
	Version  *models.Version  `json:"version,omitempty"`
}

// Coordinator runs each operation as a single transaction across the
// version and record tables.
type Coordinator struct {
	db       *gorm.DB
	cache    PointerCache
	records  *RecordStore
	versions *VersionStore
	validate *validator.Validate
	newID    func() string
}

// NewCoordinator creates a coordinator. A nil cache disables caching.
func NewCoordinator(db *gorm.DB, cache PointerCache) *Coordinator {
	if cache == nil {
		cache = NopPointerCache{}
	}
	return &Coordinator{
		db:       db,
		cache:    cache,
		records:  NewRecordStore(db, cache),
		versions: NewVersionStore(db),
		validate: validator.New(),
		newID:    NewContentID,
	}
}

// NewContentID returns 32 lowercase hex characters
func NewContentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Records returns the record store used outside transactions
func (c *Coordinator) Records() *RecordStore {
	return c.records
}

// Versions returns the version store used outside transactions
func (c *Coordinator) Versions() *VersionStore {
	return c.versions
}

func knownKind(kind OperationKind) bool {
	switch kind {
	case OpNewDraft, OpEditDraft, OpEditPublished, OpPublishDraft:
		return true
	}
	return false
}

// RunOperation validates req and runs its operation. Any failure rolls back
// every write of the operation.
func (c *Coordinator) RunOperation(ctx context.Context, req OperationRequest) (result *OperationResult, err error) {
	start := time.Now()
	label := string(req.Kind)
	if !knownKind(req.Kind) {
		label = "unknown"
	}
	defer func() {
		id := req.ContentID
		if result != nil && result.Minisite != nil {
			id = result.Minisite.ID
		}
		c.record(label, id, req.Actor, start, err)
	}()

	if err := c.validate.Struct(req); err != nil {
		return nil, types.Wrap(types.KindInvalidOperation, err, "invalid operation request")
	}
	if !knownKind(req.Kind) {
		return nil, types.InvalidOperation("unknown operation %q", req.Kind)
	}
	if strings.TrimSpace(req.Actor) == "" {
		return nil, types.InvalidOperation("operation %s requires an actor", req.Kind)
	}
	if req.Kind != OpNewDraft && req.ContentID == "" {
		return nil, types.InvalidOperation("operation %s requires a minisite id", req.Kind)
	}

	fields := req.Fields.FilterKnown()
	switch req.Kind {
	case OpNewDraft:
		return c.newDraft(ctx, req.ContentID, fields, req.Actor)
	case OpEditDraft:
		return c.edit(ctx, req.ContentID, fields, req.Actor, true)
	case OpEditPublished:
		return c.edit(ctx, req.ContentID, fields, req.Actor, false)
	default:
		return c.publish(ctx, req.ContentID, req.Actor)
	}
}

func (c *Coordinator) record(operation, id, actor string, start time.Time, err error) {
	observeOperation(operation, start, err)

	logger := logging.WithActor(log.Logger, actor)
	ev := logger.Info()
	if err != nil {
		ev = logger.Warn().Err(err).Str("kind", types.KindOf(err).String())
	}
	ev.Str("operation", operation).
		Str("minisite_id", id).
		Dur("duration", time.Since(start)).
		Msg("minisite operation")
}

func (c *Coordinator) newDraft(ctx context.Context, id string, fields document.Fields, actor string) (*OperationResult, error) {
	if id == "" {
		id = c.newID()
	}

	result := &OperationResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records := c.records.WithTx(tx)
		versions := c.versions.WithTx(tx)

		if _, err := records.FindByID(ctx, id); err == nil {
			return types.InvalidOperation("minisite %s already exists", id)
		} else if !types.IsNotFound(err) {
			return err
		}

		doc := document.Merge(nil, fields)
		raw, err := models.NewJSON(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document of %s: %w", id, err)
		}
		profile, geo := profileFrom(doc.Derive())
		slugs := defaultSlugs(id)

		number, err := versions.NextVersionNumber(ctx, id)
		if err != nil {
			return err
		}
		version := &models.Version{
			MinisiteID:    id,
			VersionNumber: number,
			Status:        models.StatusDraft,
			Label:         versionText(fields, document.FieldVersionLabel, "Initial Draft"),
			Comment:       versionText(fields, document.FieldVersionComment, "First draft of the new minisite"),
			CreatedBy:     actor,
			SiteJSON:      raw,
			BusinessSlug:  slugs.Business,
			LocationSlug:  slugs.Location,
			Profile:       profile,
			Geo:           geo,
		}
		if err := versions.Save(ctx, version); err != nil {
			return err
		}

		versionID := version.ID
		rec, err := records.Insert(ctx, &models.Minisite{
			ID:               id,
			BusinessSlug:     slugs.Business,
			LocationSlug:     slugs.Location,
			Profile:          profile,
			OwnerID:          actor,
			CreatedBy:        actor,
			UpdatedBy:        actor,
			Status:           models.StatusDraft,
			PublishStatus:    models.StatusDraft,
			CurrentVersionID: &versionID,
			SiteJSON:         raw,
			Geo:              geo,
		})
		if err != nil {
			return err
		}

		result.Minisite = rec
		result.Version = version
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Invalidate(ctx, id)
	result.Success = true
	result.Redirect = editRedirect(id, "draft_created")
	return result, nil
}

// storedDocument resolves the base document of an edit: the latest
// version's, else the record's own.
func storedDocument(versions *VersionStore, rec *models.Minisite) document.Source {
	return document.SourceFunc(func(ctx context.Context, id string) (*document.Document, error) {
		raw := rec.SiteJSON.Bytes()
		latest, err := versions.FindLatest(ctx, id)
		switch {
		case err == nil:
			raw = latest.SiteJSON.Bytes()
		case !types.IsNotFound(err):
			return nil, err
		}
		doc, err := document.Parse(raw)
		if err != nil {
			return nil, types.Wrap(types.KindIntegrityViolation, err, "stored document of minisite %s is not valid JSON", id)
		}
		return &doc, nil
	})
}

func (c *Coordinator) edit(ctx context.Context, id string, fields document.Fields, actor string, syncPreview bool) (*OperationResult, error) {
	result := &OperationResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records := c.records.WithTx(tx)
		versions := c.versions.WithTx(tx)

		rec, err := records.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(rec, actor); err != nil {
			return err
		}
		published := rec.PublishStatus == models.StatusPublished
		if syncPreview && published {
			return types.InvalidOperation("minisite %s is published, use %s", id, OpEditPublished)
		}
		if !syncPreview && !published {
			return types.InvalidOperation("minisite %s has not been published, use %s", id, OpEditDraft)
		}

		merger := document.Merger{Source: storedDocument(versions, rec)}
		doc, err := merger.MergeFor(ctx, id, nil, fields)
		if err != nil {
			return err
		}
		raw, err := models.NewJSON(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document of %s: %w", id, err)
		}
		profile, geo := profileFrom(doc.Derive())

		number, err := versions.NextVersionNumber(ctx, id)
		if err != nil {
			return err
		}
		version := &models.Version{
			MinisiteID:    id,
			VersionNumber: number,
			Status:        models.StatusDraft,
			Label:         versionText(fields, document.FieldVersionLabel, fmt.Sprintf("Version %d", number)),
			Comment:       versionText(fields, document.FieldVersionComment, ""),
			CreatedBy:     actor,
			SiteJSON:      raw,
			BusinessSlug:  rec.BusinessSlug,
			LocationSlug:  rec.LocationSlug,
			Profile:       profile,
			Geo:           geo,
		}
		if err := versions.Save(ctx, version); err != nil {
			return err
		}
		result.Version = version

		if syncPreview {
			never, err := neverPublished(ctx, versions, rec)
			if err != nil {
				return err
			}
			if never {
				if err := syncPreviewFields(ctx, records, id, profile, geo, actor); err != nil {
					return err
				}
			}
		}

		rec, err = records.FindByID(ctx, id)
		if err != nil {
			return err
		}
		result.Minisite = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Invalidate(ctx, id)
	result.Success = true
	result.Redirect = editRedirect(id, "draft_saved")
	return result, nil
}

// checkOwner refuses an actor other than the owner of rec
func checkOwner(rec *models.Minisite, actor string) error {
	if rec.OwnerID != actor {
		return types.Forbidden("minisite %s is not owned by %s", rec.ID, actor)
	}
	return nil
}

// neverPublished reports whether the record has gone live at any point
func neverPublished(ctx context.Context, versions *VersionStore, rec *models.Minisite) (bool, error) {
	if rec.PublishStatus == models.StatusPublished {
		return false, nil
	}
	_, err := versions.FindPublished(ctx, rec.ID)
	if err == nil {
		return false, nil
	}
	if types.IsNotFound(err) {
		return true, nil
	}
	return false, err
}

func syncPreviewFields(ctx context.Context, records *RecordStore, id string, p models.Profile, geo *models.GeoPoint, actor string) error {
	if err := records.UpdateTitle(ctx, id, p.Title, actor); err != nil {
		return err
	}
	info := map[string]string{
		"name":           p.Name,
		"city":           p.City,
		"region":         p.Region,
		"country_code":   p.CountryCode,
		"postal_code":    p.PostalCode,
		"site_template":  p.SiteTemplate,
		"palette":        p.Palette,
		"industry":       p.Industry,
		"default_locale": p.DefaultLocale,
		"search_terms":   p.NormalizedSearchTerms(),
	}
	if err := records.UpdateBusinessInfo(ctx, id, info, actor); err != nil {
		return err
	}
	var lat, lng *float64
	if geo != nil {
		lat, lng = &geo.Lat, &geo.Lng
	}
	return records.UpdateCoordinates(ctx, id, lat, lng, actor)
}

func (c *Coordinator) publish(ctx context.Context, id, actor string) (*OperationResult, error) {
	result := &OperationResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records := c.records.WithTx(tx)
		locked, err := records.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(locked, actor); err != nil {
			return err
		}

		rec, version, err := records.Publish(ctx, id, actor)
		if err != nil {
			return err
		}
		result.Minisite = rec
		result.Version = version
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Invalidate(ctx, id)
	result.Success = true
	result.Redirect = fmt.Sprintf("/account/sites/%s?published=1", url.PathEscape(id))
	return result, nil
}

// Rollback saves a new draft copying an earlier version. The record keeps
// pointing at its current version until the draft is published.
func (c *Coordinator) Rollback(ctx context.Context, id string, sourceVersionID uint64, actor string) (result *OperationResult, err error) {
	start := time.Now()
	defer func() {
		c.record("rollback", id, actor, start, err)
	}()

	if strings.TrimSpace(actor) == "" {
		return nil, types.InvalidOperation("rollback requires an actor")
	}

	result = &OperationResult{}
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records := c.records.WithTx(tx)
		versions := c.versions.WithTx(tx)

		rec, err := records.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(rec, actor); err != nil {
			return err
		}
		source, err := versions.FindByID(ctx, sourceVersionID)
		if err != nil {
			return err
		}
		if source.MinisiteID != id {
			return types.NotFound("version %d does not belong to minisite %s", sourceVersionID, id)
		}

		draft, err := versions.copyAsDraft(ctx, source, actor,
			fmt.Sprintf("Rollback to v%d", source.VersionNumber),
			fmt.Sprintf("Rollback from version %d", source.VersionNumber),
		)
		if err != nil {
			return err
		}
		result.Minisite = rec
		result.Version = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.Redirect = editRedirect(id, "draft_saved")
	return result, nil
}

// SaveRecord is the optimistic-lock save for library callers
func (c *Coordinator) SaveRecord(ctx context.Context, m *models.Minisite, expected uint64) (saved *models.Minisite, err error) {
	start := time.Now()
	defer func() {
		c.record("save_record", m.ID, m.UpdatedBy, start, err)
	}()

	saved, err = c.records.Save(ctx, m, expected)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(ctx, m.ID)
	return saved, nil
}

// InsertRecord inserts a record without creating a version
func (c *Coordinator) InsertRecord(ctx context.Context, m *models.Minisite) (inserted *models.Minisite, err error) {
	start := time.Now()
	defer func() {
		c.record("insert_record", m.ID, m.CreatedBy, start, err)
	}()

	if m.ID == "" {
		m.ID = c.newID()
	}
	inserted, err = c.records.Insert(ctx, m)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(ctx, m.ID)
	return inserted, nil
}

func editRedirect(id, flag string) string {
	return fmt.Sprintf("/account/sites/%s/edit?%s=1", url.PathEscape(id), flag)
}

// defaultSlugs derives the placeholder slug pair from the id
func defaultSlugs(id string) models.SlugPair {
	business, location := id, ""
	if len(id) > 8 {
		business, location = id[:8], id[8:]
	}
	if len(location) > 8 {
		location = location[:8]
	}
	pair := models.SlugPair{Business: "biz-" + business}
	if location != "" {
		pair.Location = "loc-" + location
	}
	return pair
}

func versionText(fields document.Fields, key, fallback string) string {
	if v := document.SanitizeText(fields.Get(key)); v != "" {
		return clip(v, 200)
	}
	return fallback
}

// profileFrom maps the document profile onto the stored columns, applying
// record defaults and column widths.
func profileFrom(p document.Profile) (models.Profile, *models.GeoPoint) {
	out := models.Profile{
		Title:         clip(p.Title, 200),
		Name:          clip(p.Name, 200),
		City:          clip(p.City, 120),
		Region:        clip(p.Region, 120),
		CountryCode:   clip(p.CountryCode, 8),
		PostalCode:    clip(p.PostalCode, 20),
		SiteTemplate:  clip(p.SiteTemplate, 32),
		Palette:       clip(p.Palette, 24),
		Industry:      clip(p.Industry, 40),
		DefaultLocale: clip(p.DefaultLocale, 16),
		SchemaVersion: document.SchemaVersion,
		SearchTerms:   p.SearchTerms,
	}
	if out.Title == "" {
		out.Title = DefaultTitle
	}
	if out.Name == "" {
		out.Name = DefaultTitle
	}
	if out.SiteTemplate == "" {
		out.SiteTemplate = DefaultTemplate
	}
	if out.Palette == "" {
		out.Palette = DefaultPalette
	}
	if out.DefaultLocale == "" {
		out.DefaultLocale = DefaultLocale
	}

	var geo *models.GeoPoint
	if p.Lat != nil && p.Lng != nil {
		geo = &models.GeoPoint{Lat: *p.Lat, Lng: *p.Lng}
	}
	return out, geo
}

// clip truncates s to at most n runes
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
