package models

import (
	"time"
)

// Version is an immutable content snapshot. After creation only the
// draft to published transition may change it.
type Version struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	MinisiteID      string  `gorm:"size:32;not null;uniqueIndex:idx_version_minisite_number,priority:1" json:"minisiteId"`
	VersionNumber   int     `gorm:"not null;uniqueIndex:idx_version_minisite_number,priority:2" json:"versionNumber"`
	Status          string  `gorm:"size:20;not null;index" json:"status"`
	Label           string  `gorm:"size:200;not null" json:"label"`
	Comment         string  `gorm:"type:text" json:"comment"`
	SourceVersionID *uint64 `json:"sourceVersionId,omitempty"`
	CreatedBy       string  `gorm:"size:64;not null" json:"createdBy"`
	SiteJSON        JSON    `json:"siteJson"`
	BusinessSlug    string  `gorm:"size:120;not null" json:"businessSlug"`
	LocationSlug    string  `gorm:"size:120;not null" json:"locationSlug"`

	Profile `gorm:"embedded"`

	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	Geo *GeoPoint `gorm:"-" json:"geo,omitempty"`
}

// Slugs returns the slug pair captured with the version
func (v *Version) Slugs() SlugPair {
	return SlugPair{Business: v.BusinessSlug, Location: v.LocationSlug}
}

// TableName overrides the table name for Version
func (Version) TableName() string {
	return "minisite_versions"
}
