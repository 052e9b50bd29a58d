// Package basemap holds the named basemap tile source registry.
package basemap

import (
	"sort"
	"strconv"
	"strings"
)

// Source describes an XYZ basemap tile provider.
type Source struct {
	Name        string
	URLTemplate string // {s}, {z}, {x}, {y} placeholders
	Attribution string
	MaxZoom     int
	Subdomains  []string
}

// registry maps the supported basemap names to their tile sources. The set
// matches the named basemaps of the map builder.
var registry = map[string]Source{
	"OpenStreetMap": {
		Name:        "OpenStreetMap",
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
		MaxZoom:     19,
	},
	"OpenTopoMap": {
		Name:        "OpenTopoMap",
		URLTemplate: "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors, SRTM | &copy; OpenTopoMap",
		MaxZoom:     17,
		Subdomains:  []string{"a", "b", "c"},
	},
	"CartoDB positron": {
		Name:        "CartoDB positron",
		URLTemplate: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		MaxZoom:     20,
		Subdomains:  []string{"a", "b", "c", "d"},
	},
	"CartoDB dark_matter": {
		Name:        "CartoDB dark_matter",
		URLTemplate: "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		MaxZoom:     20,
		Subdomains:  []string{"a", "b", "c", "d"},
	},
	"OSM HOT": {
		Name:        "OSM HOT",
		URLTemplate: "https://{s}.tile.openstreetmap.fr/hot/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors, Humanitarian OpenStreetMap Team",
		MaxZoom:     19,
		Subdomains:  []string{"a", "b"},
	},
	"Satellite": {
		Name:        "Satellite",
		URLTemplate: "https://webst01.is.autonavi.com/appmaptile?style=6&x={x}&y={y}&z={z}",
		Attribution: "&copy; Gaode",
		MaxZoom:     18,
	},
	"Esri WorldStreetMap": {
		Name:        "Esri WorldStreetMap",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Street_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
		MaxZoom:     19,
	},
	"Esri WorldImagery": {
		Name:        "Esri WorldImagery",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
		MaxZoom:     19,
	},
	"Esri NatGeo": {
		Name:        "Esri NatGeo",
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/NatGeo_World_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri &copy; National Geographic",
		MaxZoom:     16,
	},
	"World At Night": {
		Name:        "World At Night",
		URLTemplate: "https://map1.vis.earthdata.nasa.gov/wmts-webmerc/VIIRS_CityLights_2012/default/GoogleMapsCompatible_Level8/{z}/{y}/{x}.jpg",
		Attribution: "Imagery provided by NASA EOSDIS GIBS",
		MaxZoom:     8,
	},
	"Strava": {
		Name:        "Strava",
		URLTemplate: "https://heatmap-external-a.strava.com/tiles/all/hot/{z}/{x}/{y}.png",
		Attribution: "&copy; Strava",
		MaxZoom:     15,
	},
}

// DefaultName is the basemap used when a requested name is unknown.
const DefaultName = "OpenStreetMap"

// Register adds or replaces a named basemap source. Custom providers from
// configuration are registered before any map is built.
func Register(src Source) {
	registry[src.Name] = src
}

// Resolve returns the source for a basemap name, falling back to the default
// for unknown names. The second return reports whether the name was known.
func Resolve(name string) (Source, bool) {
	if src, ok := registry[name]; ok {
		return src, true
	}
	return registry[DefaultName], false
}

// Names returns the registered basemap names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TileURL expands the source URL template for a tile. Subdomains rotate
// deterministically by tile coordinate.
func (s Source) TileURL(z, x, y int) string {
	url := s.URLTemplate
	if len(s.Subdomains) > 0 {
		sub := s.Subdomains[(x+y)%len(s.Subdomains)]
		url = strings.ReplaceAll(url, "{s}", sub)
	}
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(z))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(x))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(y))
	return url
}

// Format returns the tile image extension implied by the URL template.
func (s Source) Format() string {
	switch {
	case strings.Contains(s.URLTemplate, ".jpg"), strings.Contains(s.URLTemplate, ".jpeg"):
		return "jpg"
	case strings.Contains(s.URLTemplate, ".png"):
		return "png"
	default:
		return "png"
	}
}
