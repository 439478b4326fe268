package repository

import (
	"context"
	"testing"
	"time"

	"domobot/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisRepo(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStateRepository(client, time.Hour), s
}

func TestRedisStateRepository(t *testing.T) {
	repo, _ := newMiniRedisRepo(t)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.SearchState{
			UserID:     123,
			SessionID:  "sess-1",
			Query:      "steam deck",
			Page:       2,
			MessageIDs: []int{10, 11},
		}

		err := repo.SetState(ctx, state)
		require.NoError(t, err)

		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.SessionID, got.SessionID)
		assert.Equal(t, state.Query, got.Query)
		assert.Equal(t, state.Page, got.Page)
		assert.Equal(t, state.MessageIDs, got.MessageIDs)
	})

	t.Run("GetNonExistentState", func(t *testing.T) {
		got, err := repo.GetState(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.SearchState{UserID: 456, SessionID: "x"}))
		require.NoError(t, repo.ClearState(ctx, 456))

		got, err := repo.GetState(ctx, 456)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisStateRepositoryTTL(t *testing.T) {
	repo, s := newMiniRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.SearchState{UserID: 1, SessionID: "expiring"}))

	s.FastForward(2 * time.Hour)

	got, err := repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "state should expire with the TTL")
}

func TestRedisCheckRateLimit(t *testing.T) {
	repo, s := newMiniRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 77, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, 77, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Window expiry resets the counter.
	s.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, 77, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisNilClient(t *testing.T) {
	repo := NewRedisStateRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.GetState(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, repo.SetState(ctx, &models.SearchState{UserID: 1}))
	assert.Error(t, repo.ClearState(ctx, 1))
	_, err = repo.CheckRateLimit(ctx, 1, 1, time.Minute)
	assert.Error(t, err)
}
