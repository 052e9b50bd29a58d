// Package store persists tiles, geocode results, and seed runs in sqlite.
package store

import (
	"context"
	"time"
)

// SeedRun is a recorded tile seeding run.
type SeedRun struct {
	ID         string
	Basemap    string
	Total      int
	Fetched    int64
	Failed     int64
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Seed run statuses.
const (
	SeedRunRunning  = "running"
	SeedRunFinished = "finished"
)

// GeocodeEntry is a cached geocode result.
type GeocodeEntry struct {
	AddressHash string
	Latitude    float64
	Longitude   float64
	Source      string
	Quality     string
	Matched     bool
	CachedAt    time.Time
}

// Store is the persistence interface used by the tile proxy, seeder, and
// geocoder.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	GetTile(ctx context.Context, basemap string, z, x, y int) ([]byte, error)
	PutTile(ctx context.Context, basemap string, z, x, y int, data []byte) error
	TileCount(ctx context.Context) (int64, error)
	PruneTiles(ctx context.Context, olderThan time.Time) (int64, error)

	StartSeedRun(ctx context.Context, runID, basemap string, total int) error
	FinishSeedRun(ctx context.Context, runID string, fetched, failed int64) error
	ListSeedRuns(ctx context.Context, limit int) ([]SeedRun, error)

	GetGeocode(ctx context.Context, addressHash string, ttlDays int) (*GeocodeEntry, error)
	PutGeocode(ctx context.Context, entry GeocodeEntry) error
}
