//go:build integration

package sessioncache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounts/internal/accounts/store"
	"accounts/internal/accounts/store/memory"
	"accounts/pkg/platform/sentinel"
	"accounts/pkg/testutil/containers"
)

func TestSessionCacheReadThrough(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	inner := memory.New()
	cached := New(inner, rc.Client)

	userID, err := inner.CreateUser(ctx, store.NewUser{Username: "alice"})
	require.NoError(t, err)

	sessionID, err := cached.CreateSession(ctx, userID, "203.0.113.7", "curl/8.0")
	require.NoError(t, err)

	t.Run("miss populates the cache", func(t *testing.T) {
		session, err := cached.FindSessionByID(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, session.Valid)

		// Second read is served from Redis: deleting the backing record
		// does not affect it until the entry expires or is dropped.
		require.NoError(t, inner.DeleteSession(ctx, sessionID))
		session, err = cached.FindSessionByID(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, session.ID)
	})

	t.Run("cold miss surfaces not found", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		_, err := cached.FindSessionByID(ctx, sessionID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestSessionCacheInvalidation(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	inner := memory.New()
	cached := New(inner, rc.Client)

	userID, err := inner.CreateUser(ctx, store.NewUser{Username: "bob"})
	require.NoError(t, err)

	first, err := cached.CreateSession(ctx, userID, "", "")
	require.NoError(t, err)
	second, err := cached.CreateSession(ctx, userID, "", "")
	require.NoError(t, err)

	// Warm the cache with both sessions.
	_, err = cached.FindSessionByID(ctx, first)
	require.NoError(t, err)
	_, err = cached.FindSessionByID(ctx, second)
	require.NoError(t, err)

	t.Run("single invalidation drops the cached copy", func(t *testing.T) {
		require.NoError(t, cached.InvalidateSession(ctx, first))
		session, err := cached.FindSessionByID(ctx, first)
		require.NoError(t, err)
		assert.False(t, session.Valid)
	})

	t.Run("bulk invalidation purges every tracked session", func(t *testing.T) {
		require.NoError(t, cached.InvalidateAllSessions(ctx, userID))
		session, err := cached.FindSessionByID(ctx, second)
		require.NoError(t, err)
		assert.False(t, session.Valid)
	})
}
