package webmap

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Document is the YAML description of a map. It is the file format behind
// the render command.
type Document struct {
	Title   string     `yaml:"title"`
	Center  []float64  `yaml:"center"` // lat, lng
	Zoom    *int       `yaml:"zoom"`   // pointer so zoom 0 is distinct from unset
	Height  string     `yaml:"height"`
	Basemap string     `yaml:"basemap"`
	Control bool       `yaml:"layer_control"`
	Layers  []DocLayer `yaml:"layers"`
}

// DocLayer is one layer entry in a map document.
type DocLayer struct {
	Kind        string         `yaml:"kind"` // geojson, tile, image, video, wms
	Name        string         `yaml:"name"`
	Path        string         `yaml:"path"`
	URL         string         `yaml:"url"`
	Attribution string         `yaml:"attribution"`
	Style       map[string]any `yaml:"style"`
	HoverStyle  map[string]any `yaml:"hover_style"`
	NoZoom      bool           `yaml:"no_zoom"`
	Bounds      [][]float64    `yaml:"bounds"`  // [[south, west], [north, east]]
	Opacity     *float64       `yaml:"opacity"` // pointer so a fully transparent 0 is distinct from unset
	WMSLayers   string         `yaml:"wms_layers"`
	Format      string         `yaml:"format"`
	Opaque      bool           `yaml:"opaque"`
}

// LoadDocument reads a YAML map document from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "webmap: read document %s", path)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "webmap: parse document %s", path)
	}
	return &doc, nil
}

// Build assembles a Map from the document. Vector layer paths are resolved
// relative to the working directory.
func (d *Document) Build() (*Map, error) {
	var opts []MapOption
	if d.Title != "" {
		opts = append(opts, WithTitle(d.Title))
	}
	if len(d.Center) == 2 {
		opts = append(opts, WithCenter(d.Center[0], d.Center[1]))
	}
	if d.Zoom != nil {
		opts = append(opts, WithZoom(*d.Zoom))
	}
	if d.Height != "" {
		opts = append(opts, WithHeight(d.Height))
	}

	m := New(opts...)

	if d.Basemap != "" {
		m.AddBasemap(d.Basemap)
	}

	for _, layer := range d.Layers {
		if err := d.addLayer(m, layer); err != nil {
			return nil, err
		}
	}

	if d.Control {
		m.AddLayerControl()
	}

	return m, nil
}

func (d *Document) addLayer(m *Map, layer DocLayer) error {
	switch layer.Kind {
	case KindGeoJSON:
		if layer.Path == "" {
			return eris.New("webmap: geojson layer requires a path")
		}
		var opts []GeoJSONOption
		if layer.Name != "" {
			opts = append(opts, WithName(layer.Name))
		}
		if layer.Style != nil {
			opts = append(opts, WithStyle(layer.Style))
		}
		if layer.HoverStyle != nil {
			opts = append(opts, WithHoverStyle(layer.HoverStyle))
		}
		if layer.NoZoom {
			opts = append(opts, WithoutZoomToLayer())
		}
		return m.AddVector(layer.Path, opts...)

	case KindTile:
		if layer.URL == "" {
			return eris.New("webmap: tile layer requires a url")
		}
		m.AddTileLayer(layer.URL, layer.Name, layer.Attribution)
		return nil

	case KindImage, KindVideo:
		if layer.URL == "" {
			return eris.Errorf("webmap: %s layer requires a url", layer.Kind)
		}
		opts, err := overlayOptions(layer)
		if err != nil {
			return err
		}
		if layer.Kind == KindImage {
			m.AddImage(layer.URL, opts...)
		} else {
			m.AddVideo(layer.URL, opts...)
		}
		return nil

	case KindWMS:
		if layer.URL == "" || layer.WMSLayers == "" {
			return eris.New("webmap: wms layer requires url and wms_layers")
		}
		var opts []WMSOption
		if layer.Name != "" {
			opts = append(opts, WithWMSName(layer.Name))
		}
		if layer.Format != "" {
			opts = append(opts, WithWMSFormat(layer.Format))
		}
		if layer.Opaque {
			opts = append(opts, WithoutTransparency())
		}
		m.AddWMS(layer.URL, layer.WMSLayers, opts...)
		return nil

	default:
		return eris.Errorf("webmap: unknown layer kind %q", layer.Kind)
	}
}

func overlayOptions(layer DocLayer) ([]OverlayOption, error) {
	var opts []OverlayOption
	if layer.Bounds != nil {
		if len(layer.Bounds) != 2 || len(layer.Bounds[0]) != 2 || len(layer.Bounds[1]) != 2 {
			return nil, eris.New("webmap: bounds must be [[south, west], [north, east]]")
		}
		opts = append(opts, WithBounds([2][2]float64{
			{layer.Bounds[0][0], layer.Bounds[0][1]},
			{layer.Bounds[1][0], layer.Bounds[1][1]},
		}))
	}
	if layer.Opacity != nil {
		opts = append(opts, WithOpacity(*layer.Opacity))
	}
	return opts, nil
}
