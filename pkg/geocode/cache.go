package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// cacheKey builds a stable hash for an address. Addresses are normalized to
// lowercase with trimmed components so formatting differences hit the same
// cache entry.
func cacheKey(addr AddressInput) string {
	normalized := strings.ToLower(strings.Join([]string{
		strings.TrimSpace(addr.Street),
		strings.TrimSpace(addr.City),
		strings.TrimSpace(addr.State),
		strings.TrimSpace(addr.ZipCode),
	}, "|"))

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// checkCache returns a cached result for the address, or nil on miss. Cache
// failures are logged and treated as misses.
func (g *geocoder) checkCache(ctx context.Context, key string) *Result {
	if g.cache == nil {
		return nil
	}

	result, err := g.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("geocode cache lookup failed", zap.Error(err))
		return nil
	}
	if result != nil {
		zap.L().Debug("geocode cache hit", zap.String("key", key))
	}
	return result
}

// storeCache saves a result for the address. Failures are logged, not fatal.
func (g *geocoder) storeCache(ctx context.Context, key string, result *Result) {
	if g.cache == nil || result == nil {
		return
	}

	if err := g.cache.Put(ctx, key, result); err != nil {
		zap.L().Warn("geocode cache store failed", zap.Error(err))
	}
}
