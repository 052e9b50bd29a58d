package tiles

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HammamiKhaled/geospython/internal/basemap"
)

// Store persists tiles across runs. Implemented by the sqlite store.
type Store interface {
	GetTile(ctx context.Context, basemap string, z, x, y int) ([]byte, error)
	PutTile(ctx context.Context, basemap string, z, x, y int, data []byte) error
}

// Proxy fetches basemap tiles from upstream providers through a two-tier
// cache: in-memory LRU first, then the persistent store.
type Proxy struct {
	client    *http.Client
	cache     *Cache
	store     Store
	limiter   *rate.Limiter
	userAgent string
}

// ProxyOption configures the Proxy.
type ProxyOption func(*Proxy)

// WithStore attaches a persistent tile store.
func WithStore(s Store) ProxyOption {
	return func(p *Proxy) { p.store = s }
}

// WithHTTPClient sets a custom HTTP client for upstream requests.
func WithHTTPClient(hc *http.Client) ProxyOption {
	return func(p *Proxy) { p.client = hc }
}

// WithUpstreamRate limits upstream requests per second.
func WithUpstreamRate(rps float64) ProxyOption {
	return func(p *Proxy) { p.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)) }
}

// WithUserAgent sets the User-Agent header for upstream requests.
func WithUserAgent(ua string) ProxyOption {
	return func(p *Proxy) { p.userAgent = ua }
}

// NewProxy creates a basemap tile proxy backed by the given in-memory cache.
func NewProxy(cache *Cache, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		client:    &http.Client{Timeout: 30 * time.Second},
		cache:     cache,
		limiter:   rate.NewLimiter(10, 10),
		userAgent: "geospython/1.0",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch returns a tile for the named basemap, consulting the memory cache,
// the persistent store, and finally the upstream provider.
func (p *Proxy) Fetch(ctx context.Context, name string, coord Coord) ([]byte, string, error) {
	src, known := basemap.Resolve(name)
	if !known {
		zap.L().Debug("tiles: unknown basemap, using default",
			zap.String("requested", name),
			zap.String("using", src.Name),
		)
	}
	contentType := formatContentType(src.Format())

	if p.cache != nil {
		if cached := p.cache.Get(src.Name, coord); cached != nil {
			return cached, contentType, nil
		}
	}

	if p.store != nil {
		stored, err := p.store.GetTile(ctx, src.Name, coord.Z, coord.X, coord.Y)
		if err != nil {
			return nil, "", err
		}
		if stored != nil {
			if p.cache != nil {
				p.cache.Put(src.Name, coord, stored)
			}
			return stored, contentType, nil
		}
	}

	data, err := p.fetchUpstream(ctx, src, coord)
	if err != nil {
		return nil, "", err
	}

	if p.cache != nil {
		p.cache.Put(src.Name, coord, data)
	}
	if p.store != nil {
		if err := p.store.PutTile(ctx, src.Name, coord.Z, coord.X, coord.Y, data); err != nil {
			zap.L().Warn("tiles: persist tile failed",
				zap.String("basemap", src.Name),
				zap.Error(err),
			)
		}
	}

	return data, contentType, nil
}

// fetchUpstream downloads a single tile from the provider.
func (p *Proxy) fetchUpstream(ctx context.Context, src basemap.Source, coord Coord) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "tiles: upstream rate limit")
	}

	url := src.TileURL(coord.Z, coord.X, coord.Y)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "tiles: create upstream request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "tiles: fetch %s tile", src.Name)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("tiles: upstream returned %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tiles: read upstream body")
	}

	zap.L().Debug("tiles: fetched upstream tile",
		zap.String("basemap", src.Name),
		zap.Int("z", coord.Z), zap.Int("x", coord.X), zap.Int("y", coord.Y),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

// CacheStats exposes the in-memory cache statistics.
func (p *Proxy) CacheStats() CacheStats {
	if p.cache == nil {
		return CacheStats{}
	}
	return p.cache.Stats()
}

// formatContentType returns the MIME type for a tile image format.
func formatContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
