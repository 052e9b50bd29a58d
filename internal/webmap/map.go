// Package webmap builds interactive Leaflet map documents. A Map accumulates
// tile, vector, and overlay layers and renders to a self-contained HTML page.
package webmap

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/HammamiKhaled/geospython/internal/basemap"
	"github.com/HammamiKhaled/geospython/internal/vector"
)

// Layer kinds understood by the renderer.
const (
	KindTile    = "tile"
	KindGeoJSON = "geojson"
	KindImage   = "image"
	KindVideo   = "video"
	KindWMS     = "wms"
)

// WorldBounds is the default overlay extent for images and videos.
var WorldBounds = [2][2]float64{{-90, -180}, {90, 180}}

// DefaultHoverStyle is applied to GeoJSON layers that do not set their own.
var DefaultHoverStyle = map[string]any{"color": "yellow", "fillOpacity": 0.5}

// Layer is one renderable map layer.
type Layer struct {
	Kind        string          `json:"kind"`
	Name        string          `json:"name,omitempty"`
	URL         string          `json:"url,omitempty"`
	Attribution string          `json:"attribution,omitempty"`
	MaxZoom     int             `json:"max_zoom,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Style       map[string]any  `json:"style,omitempty"`
	HoverStyle  map[string]any  `json:"hover_style,omitempty"`
	Bounds      *[2][2]float64  `json:"bounds,omitempty"`
	Opacity     float64         `json:"opacity,omitempty"`
	WMSLayers   string          `json:"wms_layers,omitempty"`
	Format      string          `json:"format,omitempty"`
	Transparent bool            `json:"transparent,omitempty"`
}

// Map is an interactive map document.
type Map struct {
	Title           string         `json:"title,omitempty"`
	Center          [2]float64     `json:"center"` // lat, lng
	Zoom            int            `json:"zoom"`
	Height          string         `json:"height"`
	ScrollWheelZoom bool           `json:"scroll_wheel_zoom"`
	Layers          []Layer        `json:"layers"`
	LayerControl    string         `json:"layer_control,omitempty"` // control position, empty when absent
	FitBounds       *vector.Bounds `json:"fit_bounds,omitempty"`
}

// MapOption configures a new Map.
type MapOption func(*Map)

// WithCenter sets the initial map center.
func WithCenter(lat, lng float64) MapOption {
	return func(m *Map) {
		m.Center = [2]float64{lat, lng}
	}
}

// WithZoom sets the initial zoom level.
func WithZoom(zoom int) MapOption {
	return func(m *Map) {
		m.Zoom = zoom
	}
}

// WithHeight sets the CSS height of the map element.
func WithHeight(height string) MapOption {
	return func(m *Map) {
		m.Height = height
	}
}

// WithTitle sets the page title.
func WithTitle(title string) MapOption {
	return func(m *Map) {
		m.Title = title
	}
}

// WithoutScrollWheelZoom disables zooming with the scroll wheel.
func WithoutScrollWheelZoom() MapOption {
	return func(m *Map) {
		m.ScrollWheelZoom = false
	}
}

// New creates a Map centered on [20, 0] at zoom 2 with a 600px viewport.
func New(opts ...MapOption) *Map {
	m := &Map{
		Center:          [2]float64{20, 0},
		Zoom:            2,
		Height:          "600px",
		ScrollWheelZoom: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddBasemap adds a named basemap tile layer. Unknown names fall back to
// OpenStreetMap, matching the registry's resolution rule.
func (m *Map) AddBasemap(name string) {
	src, _ := basemap.Resolve(name)
	m.Layers = append(m.Layers, Layer{
		Kind:        KindTile,
		Name:        src.Name,
		URL:         src.URLTemplate,
		Attribution: src.Attribution,
		MaxZoom:     src.MaxZoom,
		Opacity:     1.0,
	})
}

// AddTileLayer adds an XYZ tile layer by URL template. Raster datasets served
// through a tile endpoint are added this way.
func (m *Map) AddTileLayer(url, name, attribution string) {
	m.Layers = append(m.Layers, Layer{
		Kind:        KindTile,
		Name:        name,
		URL:         url,
		Attribution: attribution,
		Opacity:     1.0,
	})
}

// GeoJSONOption configures a GeoJSON layer.
type GeoJSONOption func(*geoJSONConfig)

type geoJSONConfig struct {
	name        string
	style       map[string]any
	hoverStyle  map[string]any
	zoomToLayer bool
}

// WithName names the layer.
func WithName(name string) GeoJSONOption {
	return func(c *geoJSONConfig) {
		c.name = name
	}
}

// WithStyle sets the base feature style.
func WithStyle(style map[string]any) GeoJSONOption {
	return func(c *geoJSONConfig) {
		c.style = style
	}
}

// WithHoverStyle overrides the default hover style.
func WithHoverStyle(style map[string]any) GeoJSONOption {
	return func(c *geoJSONConfig) {
		c.hoverStyle = style
	}
}

// WithoutZoomToLayer keeps the current viewport instead of fitting the
// layer's bounds.
func WithoutZoomToLayer() GeoJSONOption {
	return func(c *geoJSONConfig) {
		c.zoomToLayer = false
	}
}

// AddGeoJSON adds a feature collection as a vector layer. By default the
// viewport is fitted to the layer's bounds and features highlight yellow on
// hover.
func (m *Map) AddGeoJSON(fc *geojson.FeatureCollection, opts ...GeoJSONOption) error {
	cfg := &geoJSONConfig{zoomToLayer: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.hoverStyle == nil {
		cfg.hoverStyle = DefaultHoverStyle
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "webmap: encode geojson layer")
	}

	m.Layers = append(m.Layers, Layer{
		Kind:       KindGeoJSON,
		Name:       cfg.name,
		Data:       data,
		Style:      cfg.style,
		HoverStyle: cfg.hoverStyle,
	})

	if cfg.zoomToLayer {
		if bounds := vector.TotalBounds(fc); bounds != nil {
			m.FitBounds = bounds
		}
	}

	return nil
}

// AddVector adds vector data to the map. Accepted inputs are a file path, a
// vector.Layer, a feature collection, or a raw GeoJSON document.
func (m *Map) AddVector(data any, opts ...GeoJSONOption) error {
	switch v := data.(type) {
	case string:
		layer, err := vector.Read(v)
		if err != nil {
			return err
		}
		if layer.Name != "" {
			opts = append([]GeoJSONOption{WithName(layer.Name)}, opts...)
		}
		return m.AddGeoJSON(layer.Features, opts...)
	case *vector.Layer:
		if v.Name != "" {
			opts = append([]GeoJSONOption{WithName(v.Name)}, opts...)
		}
		return m.AddGeoJSON(v.Features, opts...)
	case *geojson.FeatureCollection:
		return m.AddGeoJSON(v, opts...)
	case []byte:
		fc, err := vector.ParseGeoJSON(v)
		if err != nil {
			return err
		}
		return m.AddGeoJSON(fc, opts...)
	default:
		return eris.New("webmap: data must be a file path, layer, feature collection, or raw GeoJSON")
	}
}

// OverlayOption configures image and video overlays.
type OverlayOption func(*overlayConfig)

type overlayConfig struct {
	bounds  *[2][2]float64
	opacity float64
}

// WithBounds sets the overlay extent as [[south, west], [north, east]].
func WithBounds(bounds [2][2]float64) OverlayOption {
	return func(c *overlayConfig) {
		c.bounds = &bounds
	}
}

// WithOpacity sets the overlay opacity.
func WithOpacity(opacity float64) OverlayOption {
	return func(c *overlayConfig) {
		c.opacity = opacity
	}
}

func applyOverlayOptions(opts []OverlayOption) overlayConfig {
	cfg := overlayConfig{opacity: 1.0}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bounds == nil {
		world := WorldBounds
		cfg.bounds = &world
	}
	return cfg
}

// AddImage overlays an image on the map. Without explicit bounds the image
// spans the whole world.
func (m *Map) AddImage(url string, opts ...OverlayOption) {
	cfg := applyOverlayOptions(opts)
	m.Layers = append(m.Layers, Layer{
		Kind:    KindImage,
		URL:     url,
		Bounds:  cfg.bounds,
		Opacity: cfg.opacity,
	})
}

// AddVideo overlays a video on the map. Without explicit bounds the video
// spans the whole world.
func (m *Map) AddVideo(url string, opts ...OverlayOption) {
	cfg := applyOverlayOptions(opts)
	m.Layers = append(m.Layers, Layer{
		Kind:    KindVideo,
		URL:     url,
		Bounds:  cfg.bounds,
		Opacity: cfg.opacity,
	})
}

// WMSOption configures a WMS layer.
type WMSOption func(*Layer)

// WithWMSFormat overrides the default image/png tile format.
func WithWMSFormat(format string) WMSOption {
	return func(l *Layer) {
		l.Format = format
	}
}

// WithoutTransparency requests opaque WMS tiles.
func WithoutTransparency() WMSOption {
	return func(l *Layer) {
		l.Transparent = false
	}
}

// WithWMSName names the WMS layer.
func WithWMSName(name string) WMSOption {
	return func(l *Layer) {
		l.Name = name
	}
}

// AddWMS adds a WMS service layer. Tiles default to transparent image/png.
func (m *Map) AddWMS(url, layers string, opts ...WMSOption) {
	layer := Layer{
		Kind:        KindWMS,
		URL:         url,
		WMSLayers:   layers,
		Format:      "image/png",
		Transparent: true,
		Opacity:     1.0,
	}
	for _, opt := range opts {
		opt(&layer)
	}
	m.Layers = append(m.Layers, layer)
}

// AddLayerControl shows the layer toggle control in the top right corner.
func (m *Map) AddLayerControl() {
	m.LayerControl = "topright"
}
