// README: Driver directory backed by Redis sets and GEO.
package driver

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hmarket/internal/types"
)

const (
	availableKey  = "drivers:available"
	geoKey        = "drivers:geo"
	zoneKeyPrefix = "drivers:zone:"
	driverKey     = "driver:"
	// Availability is re-asserted by the driver app; stale flags expire so a
	// crashed app does not keep receiving work.
	availabilityTTL = 4 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// SetAvailability flips the driver's availability flag and records their zone.
func (s *Store) SetAvailability(ctx context.Context, id types.ID, zone string, available bool) error {
	pipe := s.redis.Pipeline()
	if available {
		pipe.SAdd(ctx, availableKey, string(id))
		if zone != "" {
			pipe.SAdd(ctx, zoneKey(zone), string(id))
			pipe.HSet(ctx, driverKey+string(id), "zone", zone)
		}
		pipe.HSet(ctx, driverKey+string(id), "updated_at", time.Now().UTC().Format(time.RFC3339))
		pipe.Expire(ctx, driverKey+string(id), availabilityTTL)
	} else {
		pipe.SRem(ctx, availableKey, string(id))
		if zone != "" {
			pipe.SRem(ctx, zoneKey(zone), string(id))
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) IsAvailable(ctx context.Context, id types.ID) (bool, error) {
	return s.redis.SIsMember(ctx, availableKey, string(id)).Result()
}

// ListAvailable returns available driver ids, optionally restricted to a zone.
func (s *Store) ListAvailable(ctx context.Context, zone string) ([]types.ID, error) {
	var members []string
	var err error
	if zone == "" {
		members, err = s.redis.SMembers(ctx, availableKey).Result()
	} else {
		members, err = s.redis.SInter(ctx, availableKey, zoneKey(zone)).Result()
	}
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

// UpdatePosition records the driver's live position.
func (s *Store) UpdatePosition(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// Position returns the driver's last known position, or nil if unknown.
func (s *Store) Position(ctx context.Context, id types.ID) (*types.Point, error) {
	pos, err := s.redis.GeoPos(ctx, geoKey, string(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return nil, nil
	}
	return &types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, nil
}

// Get assembles the directory's view of one courier.
func (s *Store) Get(ctx context.Context, id types.ID) (*Info, error) {
	available, err := s.IsAvailable(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.redis.HGetAll(ctx, driverKey+string(id)).Result()
	if err != nil {
		return nil, err
	}
	pos, err := s.Position(ctx, id)
	if err != nil {
		return nil, err
	}
	info := &Info{
		ID:          id,
		Zone:        fields["zone"],
		IsAvailable: available,
		Position:    pos,
	}
	if ts, err := time.Parse(time.RFC3339, fields["updated_at"]); err == nil {
		info.UpdatedAt = ts
	}
	return info, nil
}

func zoneKey(zone string) string {
	return zoneKeyPrefix + zone
}
