package vector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/encoding/charmap"
)

const sampleFC = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"name": "Miami", "pop": 442241},
			"geometry": {"type": "Point", "coordinates": [-80.19, 25.77]}
		},
		{
			"type": "Feature",
			"properties": {"name": "Atlanta"},
			"geometry": {"type": "Point", "coordinates": [-84.39, 33.75]}
		}
	]
}`

func TestParseGeoJSON_FeatureCollection(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(sampleFC))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Miami", fc.Features[0].Properties["name"])
}

func TestParseGeoJSON_BareFeature(t *testing.T) {
	data := `{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"Point","coordinates":[1,2]}}`
	fc, err := ParseGeoJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "x", fc.Features[0].Properties["name"])
}

func TestParseGeoJSON_BareGeometry(t *testing.T) {
	data := `{"type":"Point","coordinates":[10,20]}`
	fc, err := ParseGeoJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	pt, ok := fc.Features[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 10.0, pt.X(), 0.001)
	assert.InDelta(t, 20.0, pt.Y(), 0.001)
}

func TestParseGeoJSON_Invalid(t *testing.T) {
	_, err := ParseGeoJSON([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseGeoJSON([]byte(`{"foo":"bar"}`))
	assert.Error(t, err)
}

func TestReadWriteGeoJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleFC), 0644))

	layer, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "cities", layer.Name)
	assert.Len(t, layer.Features.Features, 2)

	out := filepath.Join(dir, "out.geojson")
	require.NoError(t, WriteGeoJSON(out, layer.Features))

	again, err := ReadGeoJSON(out)
	require.NoError(t, err)
	assert.Len(t, again.Features, 2)
}

func TestRead_UnsupportedExtension(t *testing.T) {
	_, err := Read("data.gpkg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestShapeToGeom_Point(t *testing.T) {
	g := shapeToGeom(&shp.Point{X: -80.19, Y: 25.77})
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -80.19, pt.X(), 0.001)
	assert.InDelta(t, 25.77, pt.Y(), 0.001)
}

func TestShapeToGeom_PolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -80.0, Y: 25.0},
			{X: -80.1, Y: 25.1},
			{X: -80.2, Y: 25.2},
		},
	}
	g := shapeToGeom(pl)
	mls, ok := g.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 1, mls.NumLineStrings())
}

func TestShapeToGeom_MultiPartPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: -80.0, Y: 25.0},
			{X: -80.0, Y: 26.0},
			{X: -79.0, Y: 26.0},
			{X: -79.0, Y: 25.0},
			{X: -80.0, Y: 25.0},
			{X: -70.0, Y: 20.0},
			{X: -70.0, Y: 21.0},
			{X: -69.0, Y: 21.0},
			{X: -69.0, Y: 20.0},
			{X: -70.0, Y: 20.0},
		},
	}
	g := shapeToGeom(poly)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestShapeToGeom_NilAndEmpty(t *testing.T) {
	assert.Nil(t, shapeToGeom(nil))
	assert.Nil(t, shapeToGeom(&shp.Polygon{}))
	assert.Nil(t, shapeToGeom(&shp.PolyLine{}))
}

func TestDecodeAttribute_Types(t *testing.T) {
	intField := shp.Field{Fieldtype: 'N', Precision: 0}
	floatField := shp.Field{Fieldtype: 'N', Precision: 2}
	logicalField := shp.Field{Fieldtype: 'L'}
	charField := shp.Field{Fieldtype: 'C'}

	dec := charmap.ISO8859_1.NewDecoder()
	assert.Equal(t, int64(42), decodeAttribute(intField, "42", dec))
	assert.Equal(t, 3.14, decodeAttribute(floatField, "3.14", dec))
	assert.Equal(t, true, decodeAttribute(logicalField, "T", dec))
	assert.Equal(t, false, decodeAttribute(logicalField, "N", dec))
	assert.Equal(t, "hello", decodeAttribute(charField, "hello", dec))
}

func TestTotalBounds(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(sampleFC))
	require.NoError(t, err)

	b := TotalBounds(fc)
	require.NotNil(t, b)
	assert.InDelta(t, -84.39, b.MinLng, 0.001)
	assert.InDelta(t, 25.77, b.MinLat, 0.001)
	assert.InDelta(t, -80.19, b.MaxLng, 0.001)
	assert.InDelta(t, 33.75, b.MaxLat, 0.001)

	lat, lng := b.Center()
	assert.InDelta(t, 29.76, lat, 0.01)
	assert.InDelta(t, -82.29, lng, 0.01)
}

func TestTotalBounds_Empty(t *testing.T) {
	assert.Nil(t, TotalBounds(nil))
	assert.Nil(t, TotalBounds(&geojson.FeatureCollection{}))
}

func TestSummarize(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(sampleFC))
	require.NoError(t, err)

	s := Summarize(fc)
	assert.Equal(t, 2, s.FeatureCount)
	assert.Equal(t, 2, s.GeometryTypes["Point"])
	assert.Equal(t, []string{"name", "pop"}, s.Properties)
	require.NotNil(t, s.Bounds)
}

func TestAttributeTable(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(sampleFC))
	require.NoError(t, err)

	header, rows := AttributeTable(fc)
	assert.Equal(t, []string{"geometry", "name", "pop"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Point", "Miami", "442241"}, rows[0])
	assert.Equal(t, []string{"Point", "Atlanta", ""}, rows[1])
}

func TestExportCSV(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(sampleFC))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "attrs.csv")
	require.NoError(t, ExportCSV(path, fc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geometry,name,pop")
	assert.Contains(t, string(data), "Point,Miami,442241")
}

func TestExportXLSX(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(sampleFC))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "attrs.xlsx")
	require.NoError(t, ExportXLSX(path, fc))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)
}
