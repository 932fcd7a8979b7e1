// Package geometry loads country boundary polygons from Natural Earth style
// datasets (ESRI shapefile or GeoJSON).
package geometry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Attribute names projected from the boundary dataset.
const (
	AttrAdmin = "ADMIN"
	AttrCode  = "ADM0_A3"
)

// FileLoader reads boundary rows from a file on every call.
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader for a .shp, .geojson or .json file.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Path returns the dataset location.
func (l *FileLoader) Path() string {
	return l.path
}

// CheckReadiness reports whether the dataset file exists and is readable.
// A missing file wraps domain.ErrGeometryMissing, as Load does.
func (l *FileLoader) CheckReadiness(_ context.Context) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("boundary dataset %s: %w", l.path, domain.ErrGeometryMissing)
		}
		return fmt.Errorf("boundary dataset %s: %w", l.path, err)
	}
	return f.Close()
}

// Load reads every boundary row. Missing files wrap domain.ErrGeometryMissing,
// malformed content wraps domain.ErrParse.
func (l *FileLoader) Load(_ context.Context) ([]domain.CountryGeometry, error) {
	if _, err := os.Stat(l.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", l.path, domain.ErrGeometryMissing)
		}
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}

	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".shp":
		return readShapefile(l.path)
	case ".geojson", ".json":
		return readGeoJSON(l.path)
	default:
		return nil, fmt.Errorf("%s: unsupported boundary format: %w", l.path, domain.ErrParse)
	}
}

func readShapefile(path string) ([]domain.CountryGeometry, error) {
	r, err := shp.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w: %w", path, domain.ErrGeometryMissing, err)
		}
		return nil, fmt.Errorf("open shapefile %s: %w: %w", path, domain.ErrParse, err)
	}
	defer r.Close()

	adminIdx, codeIdx := -1, -1
	for i, f := range r.Fields() {
		switch strings.ToUpper(f.String()) {
		case AttrAdmin:
			adminIdx = i
		case AttrCode:
			codeIdx = i
		}
	}
	if adminIdx < 0 || codeIdx < 0 {
		return nil, fmt.Errorf("%s: missing %s/%s attributes: %w", path, AttrAdmin, AttrCode, domain.ErrParse)
	}

	var out []domain.CountryGeometry
	for r.Next() {
		n, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, fmt.Errorf("%s: record %d is %T, want polygon: %w", path, n, shape, domain.ErrParse)
		}
		out = append(out, domain.CountryGeometry{
			Country:     trimAttr(r.ReadAttribute(n, adminIdx)),
			CountryCode: trimAttr(r.ReadAttribute(n, codeIdx)),
			Geometry:    polygonParts(poly),
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w: %w", path, domain.ErrParse, err)
	}
	return out, nil
}

// trimAttr strips the space and NUL padding of fixed-width dBASE fields.
func trimAttr(s string) string {
	return strings.Trim(s, " \x00")
}

// polygonParts assembles shapefile rings into polygons. Clockwise rings are
// outer boundaries; counter-clockwise rings are holes of the preceding outer
// ring.
func polygonParts(p *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		if start >= end || end > len(p.Points) {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}

		if len(mp) == 0 || ring.Orientation() != orb.CCW {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	return mp
}

func readGeoJSON(path string) ([]domain.CountryGeometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", path, domain.ErrParse, err)
	}

	out := make([]domain.CountryGeometry, 0, len(fc.Features))
	for i, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			return nil, fmt.Errorf("%s: feature %d is %T, want polygon: %w", path, i, f.Geometry, domain.ErrParse)
		}

		admin, okAdmin := f.Properties[AttrAdmin].(string)
		code, okCode := f.Properties[AttrCode].(string)
		if !okAdmin || !okCode {
			return nil, fmt.Errorf("%s: feature %d missing %s/%s: %w", path, i, AttrAdmin, AttrCode, domain.ErrParse)
		}
		out = append(out, domain.CountryGeometry{
			Country:     strings.TrimSpace(admin),
			CountryCode: strings.TrimSpace(code),
			Geometry:    mp,
		})
	}
	return out, nil
}
