package tiles

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SeedRequest describes a bbox pre-fetch job.
type SeedRequest struct {
	Basemap string
	MinLng  float64
	MinLat  float64
	MaxLng  float64
	MaxLat  float64
	MinZoom int
	MaxZoom int
}

// SeedResult summarizes a completed seed run.
type SeedResult struct {
	RunID    string
	Total    int
	Fetched  int64
	Failed   int64
	Duration time.Duration
}

// RunLog records seed runs. Implemented by the sqlite store.
type RunLog interface {
	StartSeedRun(ctx context.Context, runID, basemap string, total int) error
	FinishSeedRun(ctx context.Context, runID string, fetched, failed int64) error
}

// Seeder pre-fetches basemap tiles covering a bounding box into the proxy's
// cache tiers.
type Seeder struct {
	proxy   *Proxy
	runLog  RunLog
	workers int
}

// NewSeeder creates a Seeder fetching through the given proxy with bounded
// concurrency. A nil runLog disables run recording.
func NewSeeder(proxy *Proxy, runLog RunLog, workers int) *Seeder {
	if workers < 1 {
		workers = 1
	}
	return &Seeder{proxy: proxy, runLog: runLog, workers: workers}
}

// maxSeedTiles caps a single seed run; larger requests must be split.
const maxSeedTiles = 100000

// Seed fetches every tile covering the request bbox across the zoom span.
// Individual tile failures are counted, not fatal; the run aborts only on
// context cancellation.
func (s *Seeder) Seed(ctx context.Context, req SeedRequest) (*SeedResult, error) {
	if req.MinZoom < 0 || req.MaxZoom < req.MinZoom || req.MaxZoom > maxZoom {
		return nil, eris.Errorf("tiles: invalid zoom span %d..%d, zoom must be 0..%d", req.MinZoom, req.MaxZoom, maxZoom)
	}
	if req.MinLng >= req.MaxLng || req.MinLat >= req.MaxLat {
		return nil, eris.New("tiles: invalid bbox")
	}

	total := CountRange(req.MinLng, req.MinLat, req.MaxLng, req.MaxLat, req.MinZoom, req.MaxZoom)
	if total > maxSeedTiles {
		return nil, eris.Errorf("tiles: seed request covers %d tiles, max is %d", total, maxSeedTiles)
	}

	runID := uuid.New().String()
	if s.runLog != nil {
		if err := s.runLog.StartSeedRun(ctx, runID, req.Basemap, total); err != nil {
			return nil, err
		}
	}

	zap.L().Info("tiles: seeding",
		zap.String("run_id", runID),
		zap.String("basemap", req.Basemap),
		zap.Int("total", total),
		zap.Int("workers", s.workers),
	)

	start := time.Now()
	var fetched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for z := req.MinZoom; z <= req.MaxZoom; z++ {
		for _, coord := range Range(req.MinLng, req.MinLat, req.MaxLng, req.MaxLat, z) {
			coord := coord
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if _, _, err := s.proxy.Fetch(gctx, req.Basemap, coord); err != nil {
					failed.Add(1)
					zap.L().Debug("tiles: seed fetch failed",
						zap.Int("z", coord.Z), zap.Int("x", coord.X), zap.Int("y", coord.Y),
						zap.Error(err),
					)
					return nil
				}
				fetched.Add(1)
				return nil
			})
		}
	}

	err := g.Wait()

	if s.runLog != nil {
		if logErr := s.runLog.FinishSeedRun(context.WithoutCancel(ctx), runID, fetched.Load(), failed.Load()); logErr != nil {
			zap.L().Warn("tiles: record seed run failed", zap.String("run_id", runID), zap.Error(logErr))
		}
	}

	if err != nil {
		return nil, eris.Wrap(err, "tiles: seed aborted")
	}

	result := &SeedResult{
		RunID:    runID,
		Total:    total,
		Fetched:  fetched.Load(),
		Failed:   failed.Load(),
		Duration: time.Since(start),
	}
	zap.L().Info("tiles: seed complete",
		zap.String("run_id", runID),
		zap.Int64("fetched", result.Fetched),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
