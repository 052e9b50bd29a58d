package webmap

import (
	"encoding/json"
	"html/template"
	"io"

	"github.com/rotisserie/eris"
)

const leafletVersion = "1.9.4"

var pageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@{{.LeafletVersion}}/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@{{.LeafletVersion}}/dist/leaflet.js"></script>
<style>
  html, body { margin: 0; padding: 0; }
  #map { height: {{.Height}}; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var config = {{.Config}};

var map = L.map('map', {
  center: config.center,
  zoom: config.zoom,
  scrollWheelZoom: config.scroll_wheel_zoom
});

var overlays = {};
(config.layers || []).forEach(function (layer, i) {
  var name = layer.name || ('Layer ' + (i + 1));
  var added;
  switch (layer.kind) {
  case 'tile':
    added = L.tileLayer(layer.url, {
      attribution: layer.attribution || '',
      maxZoom: layer.max_zoom || 19,
      opacity: layer.opacity
    }).addTo(map);
    break;
  case 'geojson':
    added = L.geoJSON(layer.data, {
      style: function () { return layer.style || {}; },
      onEachFeature: function (feature, l) {
        if (!layer.hover_style) { return; }
        l.on('mouseover', function () {
          if (l.setStyle) { l.setStyle(layer.hover_style); }
        });
        l.on('mouseout', function () {
          if (l.setStyle) { l.setStyle(layer.style || {}); }
        });
      }
    }).addTo(map);
    break;
  case 'image':
    added = L.imageOverlay(layer.url, layer.bounds, {opacity: layer.opacity}).addTo(map);
    break;
  case 'video':
    added = L.videoOverlay(layer.url, layer.bounds, {opacity: layer.opacity}).addTo(map);
    break;
  case 'wms':
    added = L.tileLayer.wms(layer.url, {
      layers: layer.wms_layers,
      format: layer.format,
      transparent: layer.transparent,
      opacity: layer.opacity
    }).addTo(map);
    break;
  }
  if (added) { overlays[name] = added; }
});

if (config.layer_control) {
  L.control.layers(null, overlays, {position: config.layer_control}).addTo(map);
}

if (config.fit_bounds) {
  var b = config.fit_bounds;
  map.fitBounds([[b.min_lat, b.min_lng], [b.max_lat, b.max_lng]]);
}
</script>
</body>
</html>
`))

type pageData struct {
	Title          string
	Height         template.CSS
	LeafletVersion string
	Config         template.JS
}

// RenderHTML writes the map as a standalone HTML page.
func (m *Map) RenderHTML(w io.Writer) error {
	cfg, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "webmap: encode map config")
	}

	title := m.Title
	if title == "" {
		title = "Map"
	}

	data := pageData{
		Title:          title,
		Height:         template.CSS(m.Height),
		LeafletVersion: leafletVersion,
		Config:         template.JS(cfg),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return eris.Wrap(err, "webmap: render page")
	}
	return nil
}
