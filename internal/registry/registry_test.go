package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackguard/extension/internal/config"
	"github.com/trackguard/extension/pkg/core"
)

// Compile-time interface checks
var (
	_ core.ExternalController = (*Redis)(nil)
	_ core.ExternalController = (*Static)(nil)
)

// fakeSet is an in-memory stand-in for the redis set commands.
type fakeSet struct {
	sets map[string]map[string]bool
	err  error
}

func newFakeSet() *fakeSet {
	return &fakeSet{sets: make(map[string]map[string]bool)}
}

func (f *fakeSet) SIsMember(_ context.Context, key string, m interface{}) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	return redis.NewBoolResult(f.sets[key][m.(string)], nil)
}

func (f *fakeSet) SAdd(_ context.Context, key string, ms ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]bool)
	}
	for _, m := range ms {
		f.sets[key][m.(string)] = true
	}
	return redis.NewIntResult(int64(len(ms)), nil)
}

func (f *fakeSet) SRem(_ context.Context, key string, ms ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, m := range ms {
		delete(f.sets[key], m.(string))
	}
	return redis.NewIntResult(int64(len(ms)), nil)
}

func TestRedis_ClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	set := newFakeSet()
	r := newRedisWith(set, "trackguard:controlled")

	managed, err := r.ManagesVehicle(ctx, 42)
	require.NoError(t, err)
	assert.False(t, managed)

	require.NoError(t, r.Claim(ctx, 42))
	assert.True(t, set.sets["trackguard:controlled"]["42"])

	managed, err = r.ManagesVehicle(ctx, 42)
	require.NoError(t, err)
	assert.True(t, managed)

	require.NoError(t, r.Release(ctx, 42))
	managed, err = r.ManagesVehicle(ctx, 42)
	require.NoError(t, err)
	assert.False(t, managed)
}

func TestRedis_ErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	set := newFakeSet()
	set.err = boom
	r := newRedisWith(set, "k")

	managed, err := r.ManagesVehicle(ctx, 1)
	assert.False(t, managed)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, r.Claim(ctx, 1), boom)
	assert.ErrorIs(t, r.Release(ctx, 1), boom)
}

func TestRedis_CloseWithoutConnection(t *testing.T) {
	r := newRedisWith(newFakeSet(), "k")
	assert.NoError(t, r.Close())
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRedis(ctx, config.RedisConfig{Address: "127.0.0.1:1", Key: "k"})
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic(1, 2)

	ok, err := s.ManagesVehicle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.ManagesVehicle(ctx, 3)
	assert.False(t, ok)

	require.NoError(t, s.Claim(ctx, 3))
	ok, _ = s.ManagesVehicle(ctx, 3)
	assert.True(t, ok)

	require.NoError(t, s.Release(ctx, 1))
	ok, _ = s.ManagesVehicle(ctx, 1)
	assert.False(t, ok)
}
