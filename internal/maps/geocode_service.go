package maps

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"

	"googlemaps.github.io/maps"

	"carpool/internal/types"
)

// geohashPrecision 7 gives ~76m cells, coarse enough to share cache entries
// between near-identical coordinates and fine enough for street addresses.
const geohashPrecision = 7

// GeocodeService resolves coordinates to formatted addresses, caching results
// in Redis for the configured TTL.
type GeocodeService struct {
	client   *maps.Client
	cache    *redis.Client
	ttl      time.Duration
	language string
}

func NewGeocodeService(apiKey, language string, cache *redis.Client, ttl time.Duration) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client, cache: cache, ttl: ttl, language: language}, nil
}

// ReverseGeocode returns the formatted address for p, or "" with
// ErrLookupUnavailable when the collaborator fails. Cache errors are treated
// as misses.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	key := cacheKey(p)
	if s.cache != nil {
		if addr, err := s.cache.Get(ctx, key).Result(); err == nil {
			return addr, nil
		}
	}

	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Language: s.language,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	if len(results) == 0 {
		return "", nil
	}

	addr := results[0].FormattedAddress
	if s.cache != nil && addr != "" {
		_ = s.cache.Set(ctx, key, addr, s.ttl).Err()
	}
	return addr, nil
}

func cacheKey(p types.Point) string {
	return "geocode:" + geohash.EncodeWithPrecision(p.Lat, p.Lng, geohashPrecision)
}
