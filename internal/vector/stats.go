package vector

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Bounds is a geographic bounding box in lon/lat order.
type Bounds struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// String formats the bounds as "minlng,minlat,maxlng,maxlat".
func (b Bounds) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Center returns the midpoint of the bounds as (lat, lng).
func (b Bounds) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Stats summarizes a feature collection.
type Stats struct {
	FeatureCount  int            `json:"feature_count"`
	GeometryTypes map[string]int `json:"geometry_types"`
	Properties    []string       `json:"properties"`
	Bounds        *Bounds        `json:"bounds,omitempty"`
}

// TotalBounds computes the bounding box covering every feature geometry.
// Returns nil for an empty collection.
func TotalBounds(fc *geojson.FeatureCollection) *Bounds {
	if fc == nil || len(fc.Features) == 0 {
		return nil
	}

	bounds := geom.NewBounds(geom.XY)
	var any bool
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil || f.Geometry.Empty() {
			continue
		}
		bounds.Extend(f.Geometry)
		any = true
	}
	if !any {
		return nil
	}

	return &Bounds{
		MinLng: bounds.Min(0),
		MinLat: bounds.Min(1),
		MaxLng: bounds.Max(0),
		MaxLat: bounds.Max(1),
	}
}

// Summarize computes stats for a feature collection.
func Summarize(fc *geojson.FeatureCollection) Stats {
	s := Stats{GeometryTypes: make(map[string]int)}
	if fc == nil {
		return s
	}

	propSet := make(map[string]bool)
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		s.FeatureCount++
		s.GeometryTypes[geometryTypeName(f.Geometry)]++
		for k := range f.Properties {
			propSet[k] = true
		}
	}

	for k := range propSet {
		s.Properties = append(s.Properties, k)
	}
	sort.Strings(s.Properties)

	s.Bounds = TotalBounds(fc)
	return s
}

// geometryTypeName returns the GeoJSON type name for a geometry.
func geometryTypeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	case nil:
		return "None"
	default:
		return "Unknown"
	}
}
