package webmap

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HammamiKhaled/geospython/internal/vector"
)

func sampleCollection(t *testing.T) *vector.Layer {
	t.Helper()
	raw := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"name": "Miami"}, "geometry": {"type": "Point", "coordinates": [-80.19, 25.77]}},
			{"type": "Feature", "properties": {"name": "Atlanta"}, "geometry": {"type": "Point", "coordinates": [-84.39, 33.75]}}
		]
	}`)
	fc, err := vector.ParseGeoJSON(raw)
	require.NoError(t, err)
	return &vector.Layer{Name: "cities", Features: fc}
}

func TestNewDefaults(t *testing.T) {
	m := New()
	assert.Equal(t, [2]float64{20, 0}, m.Center)
	assert.Equal(t, 2, m.Zoom)
	assert.Equal(t, "600px", m.Height)
	assert.True(t, m.ScrollWheelZoom)
	assert.Empty(t, m.Layers)
	assert.Empty(t, m.LayerControl)
}

func TestNewOptions(t *testing.T) {
	m := New(
		WithCenter(40.7, -74.0),
		WithZoom(12),
		WithHeight("800px"),
		WithTitle("NYC"),
		WithoutScrollWheelZoom(),
	)
	assert.Equal(t, [2]float64{40.7, -74.0}, m.Center)
	assert.Equal(t, 12, m.Zoom)
	assert.Equal(t, "800px", m.Height)
	assert.Equal(t, "NYC", m.Title)
	assert.False(t, m.ScrollWheelZoom)
}

func TestAddBasemap(t *testing.T) {
	m := New()
	m.AddBasemap("OpenTopoMap")

	require.Len(t, m.Layers, 1)
	layer := m.Layers[0]
	assert.Equal(t, KindTile, layer.Kind)
	assert.Equal(t, "OpenTopoMap", layer.Name)
	assert.Contains(t, layer.URL, "opentopomap.org")
	assert.NotEmpty(t, layer.Attribution)
}

func TestAddBasemapUnknownFallsBack(t *testing.T) {
	m := New()
	m.AddBasemap("No Such Map")

	require.Len(t, m.Layers, 1)
	assert.Equal(t, "OpenStreetMap", m.Layers[0].Name)
	assert.Contains(t, m.Layers[0].URL, "openstreetmap.org")
}

func TestAddGeoJSONDefaults(t *testing.T) {
	m := New()
	layer := sampleCollection(t)

	require.NoError(t, m.AddGeoJSON(layer.Features))
	require.Len(t, m.Layers, 1)

	added := m.Layers[0]
	assert.Equal(t, KindGeoJSON, added.Kind)
	assert.Equal(t, DefaultHoverStyle, added.HoverStyle)
	assert.NotEmpty(t, added.Data)

	// Zoom to layer is on by default.
	require.NotNil(t, m.FitBounds)
	assert.InDelta(t, -84.39, m.FitBounds.MinLng, 1e-9)
	assert.InDelta(t, 25.77, m.FitBounds.MinLat, 1e-9)
	assert.InDelta(t, -80.19, m.FitBounds.MaxLng, 1e-9)
	assert.InDelta(t, 33.75, m.FitBounds.MaxLat, 1e-9)
}

func TestAddGeoJSONOptions(t *testing.T) {
	m := New()
	layer := sampleCollection(t)

	style := map[string]any{"color": "blue"}
	hover := map[string]any{"color": "red"}
	require.NoError(t, m.AddGeoJSON(layer.Features,
		WithName("cities"),
		WithStyle(style),
		WithHoverStyle(hover),
		WithoutZoomToLayer(),
	))

	added := m.Layers[0]
	assert.Equal(t, "cities", added.Name)
	assert.Equal(t, style, added.Style)
	assert.Equal(t, hover, added.HoverStyle)
	assert.Nil(t, m.FitBounds)
}

func TestAddVectorDispatch(t *testing.T) {
	layer := sampleCollection(t)

	t.Run("feature collection", func(t *testing.T) {
		m := New()
		require.NoError(t, m.AddVector(layer.Features))
		assert.Len(t, m.Layers, 1)
	})

	t.Run("layer", func(t *testing.T) {
		m := New()
		require.NoError(t, m.AddVector(layer))
		require.Len(t, m.Layers, 1)
		assert.Equal(t, "cities", m.Layers[0].Name)
	})

	t.Run("raw geojson", func(t *testing.T) {
		m := New()
		raw := []byte(`{"type":"FeatureCollection","features":[]}`)
		require.NoError(t, m.AddVector(raw))
		assert.Len(t, m.Layers, 1)
	})

	t.Run("file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cities.geojson")
		require.NoError(t, vector.WriteGeoJSON(path, layer.Features))

		m := New()
		require.NoError(t, m.AddVector(path))
		require.Len(t, m.Layers, 1)
		assert.Equal(t, "cities", m.Layers[0].Name)
	})

	t.Run("invalid input", func(t *testing.T) {
		m := New()
		err := m.AddVector(42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a file path")
	})
}

func TestAddImageDefaults(t *testing.T) {
	m := New()
	m.AddImage("https://example.com/overlay.png")

	require.Len(t, m.Layers, 1)
	layer := m.Layers[0]
	assert.Equal(t, KindImage, layer.Kind)
	require.NotNil(t, layer.Bounds)
	assert.Equal(t, WorldBounds, *layer.Bounds)
	assert.Equal(t, 1.0, layer.Opacity)
}

func TestAddVideoWithBounds(t *testing.T) {
	m := New()
	bounds := [2][2]float64{{25, -85}, {34, -80}}
	m.AddVideo("https://example.com/clip.mp4", WithBounds(bounds), WithOpacity(0.7))

	require.Len(t, m.Layers, 1)
	layer := m.Layers[0]
	assert.Equal(t, KindVideo, layer.Kind)
	assert.Equal(t, bounds, *layer.Bounds)
	assert.Equal(t, 0.7, layer.Opacity)
}

func TestAddWMSDefaults(t *testing.T) {
	m := New()
	m.AddWMS("https://mesonet.agron.iastate.edu/cgi-bin/wms/nexrad/n0r.cgi", "nexrad-n0r-900913")

	require.Len(t, m.Layers, 1)
	layer := m.Layers[0]
	assert.Equal(t, KindWMS, layer.Kind)
	assert.Equal(t, "image/png", layer.Format)
	assert.True(t, layer.Transparent)
	assert.Equal(t, "nexrad-n0r-900913", layer.WMSLayers)
}

func TestAddWMSOptions(t *testing.T) {
	m := New()
	m.AddWMS("https://example.com/wms", "radar",
		WithWMSName("Radar"),
		WithWMSFormat("image/jpeg"),
		WithoutTransparency(),
	)

	layer := m.Layers[0]
	assert.Equal(t, "Radar", layer.Name)
	assert.Equal(t, "image/jpeg", layer.Format)
	assert.False(t, layer.Transparent)
}

func TestAddLayerControl(t *testing.T) {
	m := New()
	m.AddLayerControl()
	assert.Equal(t, "topright", m.LayerControl)
}

func TestRenderHTML(t *testing.T) {
	m := New(WithTitle("Test Map"))
	m.AddBasemap("OpenStreetMap")
	require.NoError(t, m.AddGeoJSON(sampleCollection(t).Features, WithName("cities")))
	m.AddLayerControl()

	var buf bytes.Buffer
	require.NoError(t, m.RenderHTML(&buf))

	html := buf.String()
	assert.Contains(t, html, "<title>Test Map</title>")
	assert.Contains(t, html, "leaflet.js")
	assert.Contains(t, html, "height: 600px")
	assert.Contains(t, html, "tile.openstreetmap.org")
	assert.Contains(t, html, "Miami")
	assert.Contains(t, html, "topright")
}

func TestRenderHTMLDefaultTitle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().RenderHTML(&buf))
	assert.Contains(t, buf.String(), "<title>Map</title>")
}

func TestMapJSONRoundTrip(t *testing.T) {
	m := New(WithTitle("doc"))
	m.AddBasemap("OpenStreetMap")

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Map
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.Title, decoded.Title)
	assert.Equal(t, m.Center, decoded.Center)
	require.Len(t, decoded.Layers, 1)
	assert.Equal(t, m.Layers[0].URL, decoded.Layers[0].URL)
}

func TestLoadDocumentAndBuild(t *testing.T) {
	dir := t.TempDir()

	geojsonPath := filepath.Join(dir, "cities.geojson")
	require.NoError(t, vector.WriteGeoJSON(geojsonPath, sampleCollection(t).Features))

	docPath := filepath.Join(dir, "map.yaml")
	doc := `title: Cities
center: [30, -82]
zoom: 6
height: 700px
basemap: CartoDB positron
layer_control: true
layers:
  - kind: geojson
    name: cities
    path: ` + geojsonPath + `
  - kind: wms
    url: https://example.com/wms
    wms_layers: radar
  - kind: image
    url: https://example.com/overlay.png
    bounds: [[25, -85], [34, -80]]
    opacity: 0.5
`
	require.NoError(t, os.WriteFile(docPath, []byte(doc), 0o644))

	loaded, err := LoadDocument(docPath)
	require.NoError(t, err)
	assert.Equal(t, "Cities", loaded.Title)

	m, err := loaded.Build()
	require.NoError(t, err)

	assert.Equal(t, [2]float64{30, -82}, m.Center)
	assert.Equal(t, 6, m.Zoom)
	assert.Equal(t, "700px", m.Height)
	assert.Equal(t, "topright", m.LayerControl)

	// basemap + geojson + wms + image
	require.Len(t, m.Layers, 4)
	assert.Equal(t, "CartoDB positron", m.Layers[0].Name)
	assert.Equal(t, KindGeoJSON, m.Layers[1].Kind)
	assert.Equal(t, KindWMS, m.Layers[2].Kind)
	assert.Equal(t, KindImage, m.Layers[3].Kind)
	assert.Equal(t, 0.5, m.Layers[3].Opacity)
}

func TestBuildKeepsZeroZoomAndOpacity(t *testing.T) {
	// Zoom level 0 and a fully transparent overlay are real settings,
	// not absent ones.
	zoom := 0
	opacity := 0.0
	doc := &Document{
		Zoom: &zoom,
		Layers: []DocLayer{{
			Kind:    KindImage,
			URL:     "https://example.com/overlay.png",
			Opacity: &opacity,
		}},
	}

	m, err := doc.Build()
	require.NoError(t, err)
	assert.Equal(t, 0, m.Zoom)
	require.Len(t, m.Layers, 1)
	assert.Equal(t, 0.0, m.Layers[0].Opacity)
}

func TestBuildUnsetZoomAndOpacityUseDefaults(t *testing.T) {
	doc := &Document{
		Layers: []DocLayer{{Kind: KindImage, URL: "https://example.com/overlay.png"}},
	}

	m, err := doc.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, m.Zoom)
	require.Len(t, m.Layers, 1)
	assert.Equal(t, 1.0, m.Layers[0].Opacity)
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	doc := &Document{Layers: []DocLayer{{Kind: "hologram"}}}
	_, err := doc.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown layer kind")
}

func TestBuildRequiresLayerFields(t *testing.T) {
	_, err := (&Document{Layers: []DocLayer{{Kind: KindGeoJSON}}}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a path")

	_, err = (&Document{Layers: []DocLayer{{Kind: KindWMS, URL: "https://x"}}}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires url and wms_layers")
}

func TestLoadDocumentMissingFile(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
