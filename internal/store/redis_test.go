package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client), mr
}

func TestSetIfAbsent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	acquired, err := s.SetIfAbsent(ctx, "k", "v1", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second conditional set must lose while the key lives.
	acquired, err = s.SetIfAbsent(ctx, "k", "v2", time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)

	value, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	// After expiry the key is free again.
	mr.FastForward(2 * time.Second)
	acquired, err = s.SetIfAbsent(ctx, "k", "v2", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestDeleteIfMatches(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, "k", "owner", time.Minute)
	require.NoError(t, err)

	deleted, err := s.DeleteIfMatches(ctx, "k", "intruder")
	require.NoError(t, err)
	assert.False(t, deleted)

	value, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "owner", value, "mismatched delete must not remove the key")

	deleted, err = s.DeleteIfMatches(ctx, "k", "owner")
	require.NoError(t, err)
	assert.True(t, deleted)

	value, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestGetAbsentKey(t *testing.T) {
	s, _ := newTestStore(t)

	value, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestGetDel(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, "k", "v", time.Minute)
	require.NoError(t, err)

	value, err := s.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	value, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value)

	value, err = s.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, value, "deleting an absent key reports empty, not an error")
}

func TestMoveBetweenSets(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToSet(ctx, "from", "m"))

	moved, err := s.MoveBetweenSets(ctx, "from", "to", "m")
	require.NoError(t, err)
	assert.True(t, moved)

	inFrom, err := s.IsMember(ctx, "from", "m")
	require.NoError(t, err)
	assert.False(t, inFrom)
	inTo, err := s.IsMember(ctx, "to", "m")
	require.NoError(t, err)
	assert.True(t, inTo)

	// Moving a member that is not in the source reports false.
	moved, err = s.MoveBetweenSets(ctx, "from", "to", "m")
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestSetMembership(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToSet(ctx, "set", "a"))
	require.NoError(t, s.AddToSet(ctx, "set", "b"))

	members, err := s.SetMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, s.RemoveFromSet(ctx, "set", "a"))
	ok, err := s.IsMember(ctx, "set", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashOperations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HashSet(ctx, "h", map[string]string{"name": "gophercon", "seats": "10"}))

	exists, err := s.HashFieldExists(ctx, "h", "name")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.HashFieldExists(ctx, "h", "quota")
	require.NoError(t, err)
	assert.False(t, exists)

	value, err := s.HashGet(ctx, "h", "seats")
	require.NoError(t, err)
	assert.Equal(t, "10", value)

	value, err = s.HashGet(ctx, "h", "quota")
	require.NoError(t, err)
	assert.Empty(t, value)
}
