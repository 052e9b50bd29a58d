package store

import (
	"context"
	"time"

	"github.com/HammamiKhaled/geospython/pkg/geocode"
)

// GeocodeCache adapts a Store to the geocode.Cache interface. Entries older
// than TTLDays are treated as misses; zero disables expiry.
type GeocodeCache struct {
	Store   Store
	TTLDays int
}

var _ geocode.Cache = (*GeocodeCache)(nil)

func (c *GeocodeCache) Get(ctx context.Context, addressHash string) (*geocode.Result, error) {
	entry, err := c.Store.GetGeocode(ctx, addressHash, c.TTLDays)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &geocode.Result{
		Latitude:  entry.Latitude,
		Longitude: entry.Longitude,
		Source:    "cache",
		Quality:   entry.Quality,
		Matched:   entry.Matched,
	}, nil
}

func (c *GeocodeCache) Put(ctx context.Context, addressHash string, result *geocode.Result) error {
	return c.Store.PutGeocode(ctx, GeocodeEntry{
		AddressHash: addressHash,
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		Source:      result.Source,
		Quality:     result.Quality,
		Matched:     result.Matched,
		CachedAt:    time.Now().UTC(),
	})
}
