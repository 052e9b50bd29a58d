// Package postgis queries vector layers stored in a PostGIS database and
// returns them as GeoJSON feature collections.
package postgis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// validLayers is an allowlist mapping layer names to table names. Only these
// tables may be passed to the generic spatial query functions, which prevents
// SQL injection through the layer parameter.
var validLayers = map[string]string{
	"counties": "gis.counties",
	"states":   "gis.states",
	"places":   "gis.places",
	"zcta":     "gis.zcta",
	"poi":      "gis.poi",
	"parcels":  "gis.parcels",
}

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Pool is the subset of pgxpool.Pool used by the provider.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Provider serves vector features from PostGIS tables.
type Provider struct {
	pool Pool
}

// New connects to PostGIS using the given connection string.
func New(ctx context.Context, databaseURL string) (*Provider, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgis: ping")
	}
	return &Provider{pool: pool}, nil
}

// NewWithPool wraps an existing pool. Used by tests.
func NewWithPool(pool Pool) *Provider {
	return &Provider{pool: pool}
}

// Layers returns the sorted names of queryable layers.
func (p *Provider) Layers() []string {
	names := make([]string, 0, len(validLayers))
	for name := range validLayers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveLayer checks the layer name against the allowlist.
func resolveLayer(layer string) (string, error) {
	table, ok := validLayers[layer]
	if !ok {
		return "", eris.Errorf("postgis: unknown layer %q", layer)
	}
	return table, nil
}

// FeaturesInBBox returns features of a layer intersecting a bounding box as a
// GeoJSON feature collection. Results are ordered by id and capped at limit.
func (p *Provider) FeaturesInBBox(ctx context.Context, layer string, bbox BBox, limit int) (*geojson.FeatureCollection, error) {
	table, err := resolveLayer(layer)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		`SELECT id, name, properties, ST_AsGeoJSON(geom) FROM %s WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326) ORDER BY id LIMIT $5`,
		table,
	)
	rows, err := p.pool.Query(ctx, sql, bbox.MinLng, bbox.MinLat, bbox.MaxLng, bbox.MaxLat, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: query bbox")
	}
	defer rows.Close()

	return collectFeatures(rows)
}

// FeaturesNear returns features of a layer within a distance of a point,
// ordered by proximity.
func (p *Provider) FeaturesNear(ctx context.Context, layer string, lng, lat, meters float64, limit int) (*geojson.FeatureCollection, error) {
	table, err := resolveLayer(layer)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		`SELECT id, name, properties, ST_AsGeoJSON(geom) FROM %s WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3) ORDER BY geom <-> ST_SetSRID(ST_MakePoint($1, $2), 4326) LIMIT $4`,
		table,
	)
	rows, err := p.pool.Query(ctx, sql, lng, lat, meters, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: query near")
	}
	defer rows.Close()

	return collectFeatures(rows)
}

// FeatureContaining returns the feature of a layer whose polygon contains the
// point, or nil when no polygon contains it.
func (p *Provider) FeatureContaining(ctx context.Context, layer string, lng, lat float64) (*geojson.Feature, error) {
	table, err := resolveLayer(layer)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		`SELECT id, name, properties, ST_AsGeoJSON(geom) FROM %s WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326)) LIMIT 1`,
		table,
	)

	var (
		id      int64
		name    *string
		props   []byte
		geomStr string
	)
	err = p.pool.QueryRow(ctx, sql, lng, lat).Scan(&id, &name, &props, &geomStr)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgis: query containing")
	}

	return buildFeature(id, name, props, geomStr)
}

// collectFeatures scans (id, name, properties, geojson) rows into a feature
// collection.
func collectFeatures(rows pgx.Rows) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{}
	for rows.Next() {
		var (
			id      int64
			name    *string
			props   []byte
			geomStr string
		)
		if err := rows.Scan(&id, &name, &props, &geomStr); err != nil {
			return nil, eris.Wrap(err, "postgis: scan feature row")
		}

		feature, err := buildFeature(id, name, props, geomStr)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgis: iterate feature rows")
	}
	return fc, nil
}

func buildFeature(id int64, name *string, props []byte, geomStr string) (*geojson.Feature, error) {
	var g geom.T
	if err := geojson.Unmarshal([]byte(geomStr), &g); err != nil {
		return nil, eris.Wrap(err, "postgis: decode geometry")
	}

	properties := make(map[string]any)
	if len(props) > 0 {
		if err := json.Unmarshal(props, &properties); err != nil {
			return nil, eris.Wrap(err, "postgis: decode properties")
		}
	}
	if name != nil {
		properties["name"] = *name
	}

	return &geojson.Feature{
		ID:         fmt.Sprintf("%d", id),
		Geometry:   g,
		Properties: properties,
	}, nil
}

// Close releases the underlying pool when it owns one.
func (p *Provider) Close() {
	if closer, ok := p.pool.(interface{ Close() }); ok {
		closer.Close()
	}
}
