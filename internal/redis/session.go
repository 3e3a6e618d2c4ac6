package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"minuteride/internal/domain"
)

// SessionTTL bounds how long an abandoned trip session can block its driver.
const SessionTTL = 12 * time.Hour

const updateRetries = 20

var (
	// ErrSessionChanged is returned by Update when the trip it was read for has ended.
	ErrSessionChanged = errors.New("trip session changed")

	// ErrSessionContended is returned when Update keeps losing to concurrent writers.
	ErrSessionContended = errors.New("trip session update contended")
)

// SessionStore keeps one trip session per driver in Redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, ttl: SessionTTL}
}

func sessionKey(driverID string) string {
	return fmt.Sprintf("trip:session:%s", driverID)
}

// Begin stores the session only if the driver has none.
// Returns false if another session is already active.
func (s *SessionStore) Begin(ctx context.Context, session *domain.TripSession) (bool, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return false, err
	}

	return s.client.SetNX(ctx, sessionKey(session.DriverID), data, s.ttl).Result()
}

// Get returns the driver's active session, or nil if there is none.
func (s *SessionStore) Get(ctx context.Context, driverID string) (*domain.TripSession, error) {
	data, err := s.client.Get(ctx, sessionKey(driverID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var session domain.TripSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Update applies fn to the stored session of the same trip as current and
// writes it back atomically, keeping its expiry. Concurrent updates are retried;
// ErrSessionChanged means the session ended or was replaced by another trip.
func (s *SessionStore) Update(ctx context.Context, current *domain.TripSession, fn func(*domain.TripSession)) (*domain.TripSession, error) {
	key := sessionKey(current.DriverID)
	var updated domain.TripSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionChanged
		}
		if err != nil {
			return err
		}

		var stored domain.TripSession
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if !sameTrip(&stored, current) {
			return ErrSessionChanged
		}

		fn(&stored)
		out, err := json.Marshal(&stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, out, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err == nil {
			updated = stored
		}
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("trip session %s: %w", current.DriverID, ErrSessionContended)
}

func sameTrip(a, b *domain.TripSession) bool {
	return a.JobID == b.JobID && a.StartTime.Equal(b.StartTime)
}

// End removes the driver's session.
func (s *SessionStore) End(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, sessionKey(driverID)).Err()
}
