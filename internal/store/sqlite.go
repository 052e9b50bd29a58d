package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tiles (
	basemap    TEXT NOT NULL,
	z          INTEGER NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	data       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (basemap, z, x, y)
);

CREATE TABLE IF NOT EXISTS seed_runs (
	id          TEXT PRIMARY KEY,
	basemap     TEXT NOT NULL,
	total       INTEGER NOT NULL,
	fetched     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	source       TEXT NOT NULL,
	quality      TEXT NOT NULL,
	matched      INTEGER NOT NULL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tiles_fetched_at ON tiles(fetched_at);
CREATE INDEX IF NOT EXISTS idx_seed_runs_started_at ON seed_runs(started_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetTile returns a stored tile, or nil if absent.
func (s *SQLiteStore) GetTile(ctx context.Context, basemap string, z, x, y int) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tiles WHERE basemap = ? AND z = ? AND x = ? AND y = ?`,
		basemap, z, x, y,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get tile")
	}
	return data, nil
}

// PutTile stores a tile, replacing any previous copy.
func (s *SQLiteStore) PutTile(ctx context.Context, basemap string, z, x, y int, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tiles (basemap, z, x, y, data, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (basemap, z, x, y) DO UPDATE SET
			data = excluded.data,
			fetched_at = excluded.fetched_at`,
		basemap, z, x, y, data, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put tile")
}

// TileCount returns the number of stored tiles.
func (s *SQLiteStore) TileCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: tile count")
	}
	return n, nil
}

// PruneTiles deletes tiles fetched before the cutoff and returns the count.
func (s *SQLiteStore) PruneTiles(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tiles WHERE fetched_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune tiles")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune tiles rows affected")
	}
	return n, nil
}

// StartSeedRun records the start of a seeding run.
func (s *SQLiteStore) StartSeedRun(ctx context.Context, runID, basemap string, total int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seed_runs (id, basemap, total, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, basemap, total, SeedRunRunning, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: start seed run")
}

// FinishSeedRun records the completion of a seeding run.
func (s *SQLiteStore) FinishSeedRun(ctx context.Context, runID string, fetched, failed int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE seed_runs SET fetched = ?, failed = ?, status = ?, finished_at = ? WHERE id = ?`,
		fetched, failed, SeedRunFinished, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish seed run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: finish seed run rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: seed run %s not found", runID)
	}
	return nil
}

// ListSeedRuns returns the most recent seed runs, newest first.
func (s *SQLiteStore) ListSeedRuns(ctx context.Context, limit int) ([]SeedRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, basemap, total, fetched, failed, status, started_at, finished_at
		FROM seed_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list seed runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []SeedRun
	for rows.Next() {
		var r SeedRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Basemap, &r.Total, &r.Fetched, &r.Failed, &r.Status, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan seed run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate seed runs")
	}
	return runs, nil
}

// GetGeocode returns a cached geocode entry, or nil if absent or expired.
// A ttlDays of 0 disables expiry.
func (s *SQLiteStore) GetGeocode(ctx context.Context, addressHash string, ttlDays int) (*GeocodeEntry, error) {
	query := `SELECT address_hash, latitude, longitude, source, quality, matched, cached_at
		FROM geocode_cache WHERE address_hash = ?`
	args := []any{addressHash}
	if ttlDays > 0 {
		query += ` AND cached_at > ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -ttlDays))
	}

	var e GeocodeEntry
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&e.AddressHash, &e.Latitude, &e.Longitude, &e.Source, &e.Quality, &e.Matched, &e.CachedAt,
	)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get geocode")
	}
	return &e, nil
}

// PutGeocode stores a geocode result (match or non-match).
func (s *SQLiteStore) PutGeocode(ctx context.Context, entry GeocodeEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, source, quality, matched, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			source = excluded.source,
			quality = excluded.quality,
			matched = excluded.matched,
			cached_at = excluded.cached_at`,
		entry.AddressHash, entry.Latitude, entry.Longitude, entry.Source, entry.Quality, entry.Matched, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put geocode")
}
