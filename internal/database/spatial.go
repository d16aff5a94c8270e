package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/localnerve/minisitedb/internal/models"
	"gorm.io/gorm"
)

// LocationColumn holds the geo point of minisites and versions
const LocationColumn = "location_point"

// Spatial builds the dialect specific SQL for the location column.
type Spatial struct {
	dialect string
}

// SpatialFor returns the spatial helper for db's dialect
func SpatialFor(db *gorm.DB) Spatial {
	return Spatial{dialect: db.Dialector.Name()}
}

// ColumnType is the column definition used when adding the location column
func (s Spatial) ColumnType() string {
	switch s.dialect {
	case "mysql":
		return "POINT NULL"
	case "postgres":
		return "point NULL"
	case "sqlserver":
		return "geography NULL"
	}
	return "TEXT NULL"
}

// pointExpr returns the expression that builds a point from lat and lng
func (s Spatial) pointExpr(geo models.GeoPoint) (string, []interface{}) {
	switch s.dialect {
	case "mysql":
		return "POINT(?, ?)", []interface{}{geo.Lng, geo.Lat}
	case "postgres":
		return "point(CAST(? AS double precision), CAST(? AS double precision))", []interface{}{geo.Lng, geo.Lat}
	case "sqlserver":
		return "geography::Point(?, ?, 4326)", []interface{}{geo.Lat, geo.Lng}
	}
	return "?", []interface{}{formatWKT(geo)}
}

// SetPoint writes geo to the row identified by id, or NULL when geo is nil.
func (s Spatial) SetPoint(tx *gorm.DB, table string, id interface{}, geo *models.GeoPoint) error {
	value := gorm.Expr("NULL")
	if geo != nil {
		expr, args := s.pointExpr(*geo)
		value = gorm.Expr(expr, args...)
	}
	err := tx.Table(table).Where("id = ?", id).UpdateColumn(LocationColumn, value).Error
	if err != nil {
		return fmt.Errorf("failed to set %s on %s %v: %w", LocationColumn, table, id, err)
	}
	return nil
}

type pointRow struct {
	Lat sql.NullFloat64
	Lng sql.NullFloat64
	WKT sql.NullString
}

func (s Spatial) selectSQL(table string) string {
	var cols string
	switch s.dialect {
	case "mysql":
		cols = "ST_Y(location_point) AS lat, ST_X(location_point) AS lng"
	case "postgres":
		cols = "location_point[1] AS lat, location_point[0] AS lng"
	case "sqlserver":
		cols = "location_point.Lat AS lat, location_point.Long AS lng"
	default:
		cols = "location_point AS wkt"
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND location_point IS NOT NULL", cols, table)
}

// ReadPoint reads the geo point of the row identified by id; nil when unset.
func (s Spatial) ReadPoint(tx *gorm.DB, table string, id interface{}) (*models.GeoPoint, error) {
	var rows []pointRow
	if err := tx.Raw(s.selectSQL(table), id).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read %s from %s %v: %w", LocationColumn, table, id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	if row.WKT.Valid {
		return parseWKT(row.WKT.String), nil
	}
	if !row.Lat.Valid || !row.Lng.Valid {
		return nil, nil
	}
	return &models.GeoPoint{Lat: row.Lat.Float64, Lng: row.Lng.Float64}, nil
}

func formatWKT(geo models.GeoPoint) string {
	return "POINT(" + strconv.FormatFloat(geo.Lng, 'f', -1, 64) + " " + strconv.FormatFloat(geo.Lat, 'f', -1, 64) + ")"
}

func parseWKT(wkt string) *models.GeoPoint {
	wkt = strings.TrimSpace(wkt)
	if !strings.HasPrefix(strings.ToUpper(wkt), "POINT(") || !strings.HasSuffix(wkt, ")") {
		return nil
	}
	parts := strings.Fields(wkt[len("POINT(") : len(wkt)-1])
	if len(parts) != 2 {
		return nil
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil
	}
	return &models.GeoPoint{Lat: lat, Lng: lng}
}
