package models

import (
	"strings"
	"time"
)

// Record and version status values
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// SlugPair is the business and location slug that addresses a minisite
type SlugPair struct {
	Business string `json:"business"`
	Location string `json:"location"`
}

// Full returns "business/location", or just the business slug when the location is empty
func (s SlugPair) Full() string {
	if s.Location == "" {
		return s.Business
	}
	return s.Business + "/" + s.Location
}

// GeoPoint is a latitude/longitude pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Profile holds the identity and location columns duplicated from the
// document onto both minisites and versions for querying.
type Profile struct {
	Title         string `gorm:"size:200;not null" json:"title"`
	Name          string `gorm:"size:200;not null" json:"name"`
	City          string `gorm:"size:120;not null" json:"city"`
	Region        string `gorm:"size:120;not null" json:"region"`
	CountryCode   string `gorm:"size:8;not null" json:"countryCode"`
	PostalCode    string `gorm:"size:20;not null" json:"postalCode"`
	SiteTemplate  string `gorm:"size:32;not null" json:"siteTemplate"`
	Palette       string `gorm:"size:24;not null" json:"palette"`
	Industry      string `gorm:"size:40;not null" json:"industry"`
	DefaultLocale string `gorm:"size:16;not null" json:"defaultLocale"`
	SchemaVersion int    `gorm:"not null" json:"schemaVersion"`
	SearchTerms   string `gorm:"type:text" json:"searchTerms"`
}

// NormalizedSearchTerms is the lower-cased search text built from the profile.
func (p Profile) NormalizedSearchTerms() string {
	parts := []string{p.Name, p.City, p.Industry, p.Palette, p.Title}
	return strings.ToLower(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

// Minisite is the mutable pointer record, one row per logical minisite.
// The geo point lives in the location_point column, which is written and
// read through dialect specific expressions and is not mapped here.
type Minisite struct {
	ID           string `gorm:"primaryKey;size:32" json:"id"`
	Slug         string `gorm:"size:255;not null" json:"slug"`
	BusinessSlug string `gorm:"size:120;not null;uniqueIndex:idx_minisite_slugs,priority:1" json:"businessSlug"`
	LocationSlug string `gorm:"size:120;not null;uniqueIndex:idx_minisite_slugs,priority:2" json:"locationSlug"`

	Profile `gorm:"embedded"`

	OwnerID   string `gorm:"size:64;index;not null" json:"ownerId"`
	CreatedBy string `gorm:"size:64;not null" json:"createdBy"`
	UpdatedBy string `gorm:"size:64;not null" json:"updatedBy"`

	Status           string  `gorm:"size:20;not null" json:"status"`
	PublishStatus    string  `gorm:"size:20;not null" json:"publishStatus"`
	SiteVersion      uint64  `gorm:"not null" json:"siteVersion"`
	CurrentVersionID *uint64 `gorm:"index" json:"currentVersionId,omitempty"`
	SiteJSON         JSON    `json:"siteJson"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	Geo *GeoPoint `gorm:"-" json:"geo,omitempty"`
}

// Slugs returns the slug pair of the record
func (m *Minisite) Slugs() SlugPair {
	return SlugPair{Business: m.BusinessSlug, Location: m.LocationSlug}
}

// TableName overrides the table name for Minisite
func (Minisite) TableName() string {
	return "minisites"
}
