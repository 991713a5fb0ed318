// Package registry answers whether a vehicle is driven by an external
// controller, such as an autopilot plugin that publishes the vehicles it owns.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/trackguard/extension/internal/config"
)

// members is the subset of the redis client the registry uses.
type members interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// Redis keeps controlled vehicle IDs in a redis set.
type Redis struct {
	client members
	closer func() error
	key    string
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 4,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: rdb, closer: rdb.Close, key: cfg.Key}, nil
}

func newRedisWith(client members, key string) *Redis {
	return &Redis{client: client, key: key}
}

// ManagesVehicle implements core.ExternalController.
func (r *Redis) ManagesVehicle(ctx context.Context, vehicleID uint64) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, member(vehicleID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking controller membership for %d: %w", vehicleID, err)
	}
	return ok, nil
}

// Claim marks a vehicle as externally controlled.
func (r *Redis) Claim(ctx context.Context, vehicleID uint64) error {
	if err := r.client.SAdd(ctx, r.key, member(vehicleID)).Err(); err != nil {
		return fmt.Errorf("claiming vehicle %d: %w", vehicleID, err)
	}
	return nil
}

// Release clears a vehicle's external control flag.
func (r *Redis) Release(ctx context.Context, vehicleID uint64) error {
	if err := r.client.SRem(ctx, r.key, member(vehicleID)).Err(); err != nil {
		return fmt.Errorf("releasing vehicle %d: %w", vehicleID, err)
	}
	return nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func member(vehicleID uint64) string {
	return strconv.FormatUint(vehicleID, 10)
}

// Static is an in-process set of controlled vehicles, used by replays and
// when no redis is configured.
type Static struct {
	mu  sync.RWMutex
	ids map[uint64]struct{}
}

// NewStatic creates a Static registry holding ids.
func NewStatic(ids ...uint64) *Static {
	s := &Static{ids: make(map[uint64]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// ManagesVehicle implements core.ExternalController.
func (s *Static) ManagesVehicle(_ context.Context, vehicleID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[vehicleID]
	return ok, nil
}

// Claim marks a vehicle as externally controlled.
func (s *Static) Claim(_ context.Context, vehicleID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[vehicleID] = struct{}{}
	return nil
}

// Release clears a vehicle's external control flag.
func (s *Static) Release(_ context.Context, vehicleID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, vehicleID)
	return nil
}
