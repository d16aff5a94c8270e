package services

import (
	"context"
	"fmt"
	"time"

	"github.com/localnerve/minisitedb/internal/database"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/types"
	"gorm.io/gorm"
)

// VersionStore persists the append-only version history of minisites.
type VersionStore struct {
	db      *gorm.DB
	spatial database.Spatial
}

// NewVersionStore creates a version store on db
func NewVersionStore(db *gorm.DB) *VersionStore {
	return &VersionStore{db: db, spatial: database.SpatialFor(db)}
}

// WithTx returns a copy of the store bound to tx
func (s *VersionStore) WithTx(tx *gorm.DB) *VersionStore {
	return &VersionStore{db: tx, spatial: s.spatial}
}

func (s *VersionStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *VersionStore) table() string {
	return models.Version{}.TableName()
}

// NextVersionNumber returns one more than the highest version number stored
// for the minisite, or 1 when it has none. Call it on the transaction that
// inserts the version.
func (s *VersionStore) NextVersionNumber(ctx context.Context, minisiteID string) (int, error) {
	var highest int64
	row := s.conn(ctx).Model(&models.Version{}).
		Select("COALESCE(MAX(version_number), 0)").
		Where("minisite_id = ?", minisiteID).
		Row()
	if err := row.Scan(&highest); err != nil {
		return 0, fmt.Errorf("failed to read version numbers for %s: %w", minisiteID, err)
	}
	return int(highest) + 1, nil
}

// Save inserts a version without an id, or rewrites the full row of one
// with an id. The location point follows v.Geo.
func (s *VersionStore) Save(ctx context.Context, v *models.Version) error {
	db := s.conn(ctx)

	var err error
	if v.ID == 0 {
		err = db.Create(v).Error
	} else {
		err = db.Save(v).Error
	}
	if err != nil {
		return types.FromDB(err, "failed to save version %d of minisite %s", v.VersionNumber, v.MinisiteID)
	}

	return s.spatial.SetPoint(db, s.table(), v.ID, v.Geo)
}

func (s *VersionStore) findOne(ctx context.Context, what string, scope func(*gorm.DB) *gorm.DB) (*models.Version, error) {
	var v models.Version
	err := scope(s.conn(ctx).Model(&models.Version{})).
		Order("version_number DESC").
		Take(&v).Error
	if err != nil {
		return nil, types.FromDB(err, "%s", what)
	}
	if err := s.LoadGeo(ctx, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByID returns the version with the given id
func (s *VersionStore) FindByID(ctx context.Context, id uint64) (*models.Version, error) {
	return s.findOne(ctx, fmt.Sprintf("version %d not found", id), func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	})
}

// FindLatest returns the highest numbered version of any status
func (s *VersionStore) FindLatest(ctx context.Context, minisiteID string) (*models.Version, error) {
	return s.findOne(ctx, fmt.Sprintf("no version found for minisite %s", minisiteID), func(db *gorm.DB) *gorm.DB {
		return db.Where("minisite_id = ?", minisiteID)
	})
}

// FindLatestDraft returns the highest numbered draft
func (s *VersionStore) FindLatestDraft(ctx context.Context, minisiteID string) (*models.Version, error) {
	return s.findOne(ctx, fmt.Sprintf("no draft version found for minisite %s", minisiteID), func(db *gorm.DB) *gorm.DB {
		return db.Where("minisite_id = ? AND status = ?", minisiteID, models.StatusDraft)
	})
}

// FindPublished returns the highest numbered published version
func (s *VersionStore) FindPublished(ctx context.Context, minisiteID string) (*models.Version, error) {
	return s.findOne(ctx, fmt.Sprintf("no published version found for minisite %s", minisiteID), func(db *gorm.DB) *gorm.DB {
		return db.Where("minisite_id = ? AND status = ?", minisiteID, models.StatusPublished)
	})
}

// CreateDraftFromVersion saves a new draft copying source's document and
// profile, numbered after the latest version of the same minisite.
func (s *VersionStore) CreateDraftFromVersion(ctx context.Context, source *models.Version, actor string) (*models.Version, error) {
	return s.copyAsDraft(ctx, source, actor,
		fmt.Sprintf("Draft from v%d", source.VersionNumber),
		fmt.Sprintf("Created from version %d for editing", source.VersionNumber),
	)
}

func (s *VersionStore) copyAsDraft(ctx context.Context, source *models.Version, actor, label, comment string) (*models.Version, error) {
	next, err := s.NextVersionNumber(ctx, source.MinisiteID)
	if err != nil {
		return nil, err
	}

	sourceID := source.ID
	draft := &models.Version{
		MinisiteID:      source.MinisiteID,
		VersionNumber:   next,
		Status:          models.StatusDraft,
		Label:           label,
		Comment:         comment,
		SourceVersionID: &sourceID,
		CreatedBy:       actor,
		SiteJSON:        models.JSON{JSON: append(source.SiteJSON.JSON[:0:0], source.SiteJSON.JSON...)},
		BusinessSlug:    source.BusinessSlug,
		LocationSlug:    source.LocationSlug,
		Profile:         source.Profile,
	}
	if source.Geo != nil {
		geo := *source.Geo
		draft.Geo = &geo
	}

	if err := s.Save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// GetLatestDraftForEditing returns the latest version when it is a draft,
// otherwise a new draft copied from it. A minisite without versions is an
// integrity violation.
func (s *VersionStore) GetLatestDraftForEditing(ctx context.Context, minisiteID, actor string) (*models.Version, error) {
	latest, err := s.FindLatest(ctx, minisiteID)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, types.IntegrityViolation("no version found for minisite %s", minisiteID)
		}
		return nil, err
	}
	if latest.Status == models.StatusDraft {
		return latest, nil
	}
	return s.CreateDraftFromVersion(ctx, latest, actor)
}

// ListByMinisite lists the history newest first. Geo is not loaded.
func (s *VersionStore) ListByMinisite(ctx context.Context, minisiteID string, limit, offset int) ([]models.Version, error) {
	var versions []models.Version
	q := s.conn(ctx).Where("minisite_id = ?", minisiteID).Order("version_number DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", minisiteID, err)
	}
	return versions, nil
}

// CountByMinisite counts the versions of a minisite
func (s *VersionStore) CountByMinisite(ctx context.Context, minisiteID string) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Version{}).Where("minisite_id = ?", minisiteID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count versions of %s: %w", minisiteID, err)
	}
	return n, nil
}

// MarkPublished moves a draft to published. This is the only change a
// version accepts after creation, so a version that is not a draft conflicts.
func (s *VersionStore) MarkPublished(ctx context.Context, id uint64, at time.Time) error {
	result := s.conn(ctx).Model(&models.Version{}).
		Where("id = ? AND status = ?", id, models.StatusDraft).
		UpdateColumns(map[string]interface{}{
			"status":       models.StatusPublished,
			"published_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to publish version %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := s.conn(ctx).Model(&models.Version{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check version %d: %w", id, err)
	}
	if n == 0 {
		return types.NotFound("version %d not found", id)
	}
	return types.Conflict("version %d is not a draft", id)
}

// LoadGeo reads the stored location point into v.Geo
func (s *VersionStore) LoadGeo(ctx context.Context, v *models.Version) error {
	geo, err := s.spatial.ReadPoint(s.conn(ctx), s.table(), v.ID)
	if err != nil {
		return err
	}
	v.Geo = geo
	return nil
}
