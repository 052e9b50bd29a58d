package vector

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ReadGeoJSON reads a GeoJSON file into a feature collection.
// A bare Feature or Geometry document is wrapped into a single-feature collection.
func ReadGeoJSON(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: read %s", path)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON parses GeoJSON bytes into a feature collection.
func ParseGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, eris.Wrap(err, "vector: parse geojson")
	}

	switch probe.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "vector: parse feature collection")
		}
		return &fc, nil
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "vector: parse feature")
		}
		return &geojson.FeatureCollection{Features: []*geojson.Feature{&f}}, nil
	case "":
		return nil, eris.New("vector: geojson document has no type")
	default:
		// Bare geometry.
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(err, "vector: parse geometry %s", probe.Type)
		}
		return &geojson.FeatureCollection{
			Features: []*geojson.Feature{{Geometry: g, Properties: map[string]any{}}},
		}, nil
	}
}

// WriteGeoJSON writes a feature collection to a file.
func WriteGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "vector: marshal feature collection")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "vector: write %s", path)
	}
	return nil
}
