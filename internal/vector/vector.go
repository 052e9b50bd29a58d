// Package vector reads and analyzes vector datasets (GeoJSON and shapefiles).
package vector

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Layer is an in-memory vector layer with its source metadata.
type Layer struct {
	Name     string
	Source   string
	Features *geojson.FeatureCollection
}

// Read loads a vector dataset from a file path, dispatching on extension.
// Supported: .geojson/.json and .shp.
func Read(path string) (*Layer, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		fc, err := ReadGeoJSON(path)
		if err != nil {
			return nil, err
		}
		return &Layer{Name: name, Source: path, Features: fc}, nil
	case ".shp":
		fc, err := ReadShapefile(path)
		if err != nil {
			return nil, err
		}
		return &Layer{Name: name, Source: path, Features: fc}, nil
	default:
		return nil, eris.Errorf("vector: unsupported format %q (want .geojson, .json, or .shp)", filepath.Ext(path))
	}
}
