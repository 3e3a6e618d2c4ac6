package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const driverLocationKey = "drivers:on_trip:locations"

// DriverLocation represents a driver's last reported position.
type DriverLocation struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// LocationStore indexes the last position of drivers with a running trip.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// Positions returns every indexed driver position.
func (s *LocationStore) Positions(ctx context.Context) ([]DriverLocation, error) {
	ids, err := s.client.ZRange(ctx, driverLocationKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []DriverLocation{}, nil
	}

	coords, err := s.client.GeoPos(ctx, driverLocationKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]DriverLocation, 0, len(ids))
	for i, pos := range coords {
		// member removed between ZRANGE and GEOPOS
		if pos == nil {
			continue
		}
		locations = append(locations, DriverLocation{
			DriverID: ids[i],
			Lat:      pos.Latitude,
			Lng:      pos.Longitude,
		})
	}

	return locations, nil
}

// RemoveLocation removes a driver's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey, driverID).Err()
}
