package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/localnerve/minisitedb/internal/database"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"
)

// ownerIndex is the index GORM creates for Minisite.OwnerID
const ownerIndex = "idx_minisites_owner_id"

// businessInfoColumns are the columns UpdateBusinessInfo may write
var businessInfoColumns = map[string]struct{}{
	"title":          {},
	"name":           {},
	"city":           {},
	"region":         {},
	"country_code":   {},
	"postal_code":    {},
	"site_template":  {},
	"palette":        {},
	"industry":       {},
	"default_locale": {},
	"search_terms":   {},
}

// RecordStore persists the mutable minisite pointer records. Save is the
// optimistic-lock path; the Update* methods are narrow writes that leave
// site_version alone.
type RecordStore struct {
	db      *gorm.DB
	cache   PointerCache
	spatial database.Spatial
	inTx    bool
	now     func() time.Time
}

// NewRecordStore creates a record store on db. A nil cache disables caching.
func NewRecordStore(db *gorm.DB, cache PointerCache) *RecordStore {
	if cache == nil {
		cache = NopPointerCache{}
	}
	return &RecordStore{
		db:      db,
		cache:   cache,
		spatial: database.SpatialFor(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a copy bound to tx. Reads on it bypass the cache.
func (s *RecordStore) WithTx(tx *gorm.DB) *RecordStore {
	cp := *s
	cp.db = tx
	cp.inTx = true
	return &cp
}

func (s *RecordStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *RecordStore) table() string {
	return models.Minisite{}.TableName()
}

func (s *RecordStore) invalidate(ctx context.Context, ids ...string) {
	s.cache.Invalidate(ctx, ids...)
}

// Insert writes a new record with site_version 1
func (s *RecordStore) Insert(ctx context.Context, m *models.Minisite) (*models.Minisite, error) {
	m.SiteVersion = 1
	m.Slug = m.Slugs().Full()
	m.SearchTerms = m.Profile.NormalizedSearchTerms()

	db := s.conn(ctx)
	if err := db.Create(m).Error; err != nil {
		return nil, types.FromDB(err, "failed to insert minisite %s", m.ID)
	}
	if err := s.spatial.SetPoint(db, s.table(), m.ID, m.Geo); err != nil {
		return nil, err
	}

	s.invalidate(ctx, m.ID)
	return m, nil
}

func recordValues(m *models.Minisite) map[string]interface{} {
	return map[string]interface{}{
		"slug":               m.Slugs().Full(),
		"business_slug":      m.BusinessSlug,
		"location_slug":      m.LocationSlug,
		"title":              m.Title,
		"name":               m.Name,
		"city":               m.City,
		"region":             m.Region,
		"country_code":       m.CountryCode,
		"postal_code":        m.PostalCode,
		"site_template":      m.SiteTemplate,
		"palette":            m.Palette,
		"industry":           m.Industry,
		"default_locale":     m.DefaultLocale,
		"schema_version":     m.SchemaVersion,
		"search_terms":       m.SearchTerms,
		"owner_id":           m.OwnerID,
		"updated_by":         m.UpdatedBy,
		"status":             m.Status,
		"publish_status":     m.PublishStatus,
		"current_version_id": m.CurrentVersionID,
		"site_json":          m.SiteJSON,
		"published_at":       m.PublishedAt,
	}
}

// Save writes every field of m when the stored site_version still equals
// expected, bumping it by one. A stale expected version conflicts and
// leaves the row untouched. search_terms is rebuilt from the profile as on
// Insert. The reloaded record is returned.
func (s *RecordStore) Save(ctx context.Context, m *models.Minisite, expected uint64) (*models.Minisite, error) {
	db := s.conn(ctx)

	m.SearchTerms = m.Profile.NormalizedSearchTerms()
	values := recordValues(m)
	values["site_version"] = gorm.Expr("site_version + ?", 1)
	values["updated_at"] = s.now()

	result := db.Model(&models.Minisite{}).
		Where("id = ? AND site_version = ?", m.ID, expected).
		UpdateColumns(values)
	if result.Error != nil {
		return nil, types.FromDB(result.Error, "failed to save minisite %s", m.ID)
	}
	if result.RowsAffected == 0 {
		if err := s.mustExist(ctx, m.ID); err != nil {
			return nil, err
		}
		return nil, types.Conflict("minisite %s changed since site_version %d, reload and retry", m.ID, expected)
	}

	if err := s.spatial.SetPoint(db, s.table(), m.ID, m.Geo); err != nil {
		return nil, err
	}
	s.invalidate(ctx, m.ID)

	return s.Reload(ctx, m.ID)
}

func (s *RecordStore) mustExist(ctx context.Context, id string) error {
	var n int64
	if err := s.conn(ctx).Model(&models.Minisite{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check minisite %s: %w", id, err)
	}
	if n == 0 {
		return types.NotFound("minisite %s not found", id)
	}
	return nil
}

// updateColumns is the shared body of the narrow updaters
func (s *RecordStore) updateColumns(ctx context.Context, id string, values map[string]interface{}) error {
	values["updated_at"] = s.now()
	result := s.conn(ctx).Model(&models.Minisite{}).Where("id = ?", id).UpdateColumns(values)
	if result.Error != nil {
		return types.FromDB(result.Error, "failed to update minisite %s", id)
	}
	if result.RowsAffected == 0 {
		if err := s.mustExist(ctx, id); err != nil {
			return err
		}
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *RecordStore) UpdateCurrentVersionID(ctx context.Context, id string, versionID uint64) error {
	return s.updateColumns(ctx, id, map[string]interface{}{"current_version_id": versionID})
}

// UpdateSlug rewrites the full slug column only
func (s *RecordStore) UpdateSlug(ctx context.Context, id, slug string) error {
	return s.updateColumns(ctx, id, map[string]interface{}{"slug": slug})
}

// UpdateSlugs rewrites the slug pair. A pair taken by another record conflicts.
func (s *RecordStore) UpdateSlugs(ctx context.Context, id string, slugs models.SlugPair) error {
	return s.updateColumns(ctx, id, map[string]interface{}{
		"business_slug": slugs.Business,
		"location_slug": slugs.Location,
		"slug":          slugs.Full(),
	})
}

func (s *RecordStore) UpdatePublishStatus(ctx context.Context, id, status string) error {
	if status != models.StatusDraft && status != models.StatusPublished {
		return types.InvalidOperation("unknown publish status %q", status)
	}
	return s.updateColumns(ctx, id, map[string]interface{}{"publish_status": status})
}

// UpdateStatus sets the lifecycle status; published also stamps published_at
func (s *RecordStore) UpdateStatus(ctx context.Context, id, status string) error {
	values := map[string]interface{}{"status": status}
	switch status {
	case models.StatusDraft, models.StatusArchived:
	case models.StatusPublished:
		values["published_at"] = s.now()
	default:
		return types.InvalidOperation("unknown status %q", status)
	}
	return s.updateColumns(ctx, id, values)
}

func (s *RecordStore) UpdateTitle(ctx context.Context, id, title, updatedBy string) error {
	return s.updateColumns(ctx, id, map[string]interface{}{"title": title, "updated_by": updatedBy})
}

// UpdateCoordinates sets the location point, or clears it unless both
// lat and lng are given.
func (s *RecordStore) UpdateCoordinates(ctx context.Context, id string, lat, lng *float64, updatedBy string) error {
	var geo *models.GeoPoint
	if lat != nil && lng != nil {
		geo = &models.GeoPoint{Lat: *lat, Lng: *lng}
	}
	if err := s.updateColumns(ctx, id, map[string]interface{}{"updated_by": updatedBy}); err != nil {
		return err
	}
	return s.spatial.SetPoint(s.conn(ctx), s.table(), id, geo)
}

// UpdateBusinessInfo writes the given profile columns. Columns outside the
// business info set are rejected before anything is written.
func (s *RecordStore) UpdateBusinessInfo(ctx context.Context, id string, fields map[string]string, updatedBy string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields)+1)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := businessInfoColumns[k]; !ok {
			return types.InvalidOperation("column %q is not business info", k)
		}
		values[k] = fields[k]
	}
	values["updated_by"] = updatedBy
	return s.updateColumns(ctx, id, values)
}

// Publish makes the latest draft the live version of the record. Bound to a
// transaction it runs there, otherwise it opens its own.
func (s *RecordStore) Publish(ctx context.Context, id, actor string) (*models.Minisite, *models.Version, error) {
	if s.inTx {
		return s.publish(ctx, id, actor)
	}

	var (
		rec     *models.Minisite
		version *models.Version
	)
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, version, err = s.WithTx(tx).publish(ctx, id, actor)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.invalidate(ctx, id)
	return rec, version, nil
}

func (s *RecordStore) publish(ctx context.Context, id, actor string) (*models.Minisite, *models.Version, error) {
	rec, err := s.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	versions := NewVersionStore(s.db)
	draft, err := versions.FindLatestDraft(ctx, id)
	if err != nil {
		if !types.IsNotFound(err) {
			return nil, nil, err
		}
		n, cerr := versions.CountByMinisite(ctx, id)
		if cerr != nil {
			return nil, nil, cerr
		}
		if n == 0 {
			return nil, nil, types.IntegrityViolation("no version found for minisite %s", id)
		}
		return nil, nil, types.NotFound("no draft version to publish for minisite %s", id)
	}

	// Drafts older than the live version were superseded by it
	if rec.PublishStatus == models.StatusPublished && rec.CurrentVersionID != nil {
		live, err := versions.FindByID(ctx, *rec.CurrentVersionID)
		if err != nil && !types.IsNotFound(err) {
			return nil, nil, err
		}
		if live != nil && draft.VersionNumber < live.VersionNumber {
			return nil, nil, types.NotFound("no draft newer than version %d to publish for minisite %s", live.VersionNumber, id)
		}
	}

	now := s.now()
	if err := versions.MarkPublished(ctx, draft.ID, now); err != nil {
		return nil, nil, err
	}
	draft.Status = models.StatusPublished
	draft.PublishedAt = &now

	versionID := draft.ID
	rec.Profile = draft.Profile
	rec.SiteJSON = draft.SiteJSON
	rec.Geo = draft.Geo
	rec.Status = models.StatusPublished
	rec.PublishStatus = models.StatusPublished
	rec.CurrentVersionID = &versionID
	rec.PublishedAt = &now
	if actor != "" {
		rec.UpdatedBy = actor
	}

	saved, err := s.Save(ctx, rec, rec.SiteVersion)
	if err != nil {
		return nil, nil, err
	}
	return saved, draft, nil
}

func (s *RecordStore) load(ctx context.Context, q *gorm.DB, missing string) (*models.Minisite, error) {
	var m models.Minisite
	if err := q.Take(&m).Error; err != nil {
		return nil, types.FromDB(err, "%s", missing)
	}
	geo, err := s.spatial.ReadPoint(s.conn(ctx), s.table(), m.ID)
	if err != nil {
		return nil, err
	}
	m.Geo = geo
	return &m, nil
}

// FindByID returns the record, through the cache unless bound to a transaction
func (s *RecordStore) FindByID(ctx context.Context, id string) (*models.Minisite, error) {
	var gen uint64
	fill := false
	if !s.inTx {
		if m, ok := s.cache.Get(ctx, id); ok {
			return m, nil
		}
		gen, fill = s.cache.Generation(ctx, id)
	}
	m, err := s.load(ctx, s.conn(ctx).Where("id = ?", id), fmt.Sprintf("minisite %s not found", id))
	if err != nil {
		return nil, err
	}
	if fill {
		s.cache.Fill(ctx, m, gen)
	}
	return m, nil
}

// Reload reads the record from the database, skipping the cache
func (s *RecordStore) Reload(ctx context.Context, id string) (*models.Minisite, error) {
	return s.load(ctx, s.conn(ctx).Where("id = ?", id), fmt.Sprintf("minisite %s not found", id))
}

// FindByIDForUpdate reads the record holding a row lock until the
// transaction ends.
func (s *RecordStore) FindByIDForUpdate(ctx context.Context, id string) (*models.Minisite, error) {
	q := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	return s.load(ctx, q, fmt.Sprintf("minisite %s not found", id))
}

func (s *RecordStore) FindBySlugs(ctx context.Context, slugs models.SlugPair) (*models.Minisite, error) {
	q := s.conn(ctx).Where("business_slug = ? AND location_slug = ?", slugs.Business, slugs.Location)
	return s.load(ctx, q, fmt.Sprintf("minisite %s not found", slugs.Full()))
}

func (s *RecordStore) FindBySlugsForUpdate(ctx context.Context, slugs models.SlugPair) (*models.Minisite, error) {
	q := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_slug = ? AND location_slug = ?", slugs.Business, slugs.Location)
	return s.load(ctx, q, fmt.Sprintf("minisite %s not found", slugs.Full()))
}

// ListByOwner lists an owner's records, most recently updated first.
// Geo is not loaded.
func (s *RecordStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Minisite, error) {
	q := s.conn(ctx).Model(&models.Minisite{})
	if s.db.Dialector.Name() == "mysql" {
		q = q.Clauses(hints.UseIndex(ownerIndex))
	}
	q = q.Where("owner_id = ?", ownerID).Order("updated_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var records []models.Minisite
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list minisites of owner %s: %w", ownerID, err)
	}
	return records, nil
}

func (s *RecordStore) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Minisite{}).Where("owner_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count minisites of owner %s: %w", ownerID, err)
	}
	return n, nil
}
