package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget-go/internal/model"
	"chat-widget-go/internal/transcript"
)

func newTestSessionRepository(t *testing.T) (SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionRepository(client, time.Hour), mr
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	repo, mr := newTestSessionRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := transcript.NewSession("sid-1", "welcome", now)
	sess.CurrentCategory = "HR Policy"
	sess.Transcript.Append(model.NewUserMessage("hello", nil, now))
	require.NoError(t, repo.Save(ctx, sess))
	assert.Equal(t, time.Hour, mr.TTL("widget:session:sid-1"))

	got, err := repo.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Transcript.ID(), got.Transcript.ID())
	assert.Equal(t, "HR Policy", got.CurrentCategory)
	require.Equal(t, 2, got.Transcript.Len())
	last, _ := got.Transcript.At(1)
	assert.Equal(t, "hello", last.Body.Text)

	mr.FastForward(2 * time.Hour)
	_, err = repo.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRepositoryInFlight(t *testing.T) {
	repo, _ := newTestSessionRepository(t)
	ctx := context.Background()

	ok, err := repo.AcquireInFlight(ctx, "sid-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireInFlight(ctx, "sid-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ReleaseInFlight(ctx, "sid-1"))
	ok, err = repo.AcquireInFlight(ctx, "sid-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
