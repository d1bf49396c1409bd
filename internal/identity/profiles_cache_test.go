package identity

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedProfiles blocks every lookup until release is closed or the lookup's
// context ends.
type gatedProfiles struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedProfiles() *gatedProfiles {
	return &gatedProfiles{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedProfiles) ByUID(ctx context.Context, uid string) (*Profile, error) {
	return g.ByUsername(ctx, uid)
}

func (g *gatedProfiles) ByUsername(ctx context.Context, username string) (*Profile, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return &Profile{UID: "uid-" + username, Username: username}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// unreachableRedis fails every command quickly, so lookups fall through to the source.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestCache(t *testing.T, source ProfileDirectory) *CachedProfiles {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedProfiles(source, unreachableRedis(t), time.Minute, logger)
}

func TestCachedProfilesFirstCallerCancellationDoesNotFailWaiters(t *testing.T) {
	source := newGatedProfiles()
	cache := newTestCache(t, source)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.ByUsername(firstCtx, "alice")
		firstErr <- err
	}()
	<-source.started

	type result struct {
		profile *Profile
		err     error
	}
	second := make(chan result, 1)
	go func() {
		p, err := cache.ByUsername(context.Background(), "alice")
		second <- result{p, err}
	}()
	time.Sleep(200 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(source.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, "alice", res.profile.Username)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller did not return")
	}
	assert.Equal(t, int32(1), source.calls.Load(), "waiter shares the in-flight lookup")
}

func TestCachedProfilesLoadIsBounded(t *testing.T) {
	source := newGatedProfiles()
	cache := newTestCache(t, source)
	cache.loadTimeout = 50 * time.Millisecond

	_, err := cache.ByUsername(context.Background(), "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
