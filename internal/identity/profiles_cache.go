package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"openmediamap/pkg/platform/sentinel"
)

const (
	profileKeyPrefix   = "omm:profile:"
	profileLoadTimeout = 5 * time.Second
)

// CachedProfiles is a read-through Redis cache in front of another directory.
// Concurrent misses for the same key share one upstream lookup, which runs
// detached from any single caller's cancellation and is bounded by its own
// timeout. Redis failures fall through to the source; only source errors are
// returned.
type CachedProfiles struct {
	source      ProfileDirectory
	client      redis.UniversalClient
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	logger      *slog.Logger
}

func NewCachedProfiles(source ProfileDirectory, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedProfiles {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProfiles{source: source, client: client, ttl: ttl, loadTimeout: profileLoadTimeout, logger: logger}
}

func (c *CachedProfiles) ByUID(ctx context.Context, uid string) (*Profile, error) {
	return c.lookup(ctx, "uid:"+uid, func(ctx context.Context) (*Profile, error) {
		return c.source.ByUID(ctx, uid)
	})
}

func (c *CachedProfiles) ByUsername(ctx context.Context, username string) (*Profile, error) {
	return c.lookup(ctx, "username:"+username, func(ctx context.Context) (*Profile, error) {
		return c.source.ByUsername(ctx, username)
	})
}

// Invalidate drops cached entries for a profile after it changes.
func (c *CachedProfiles) Invalidate(ctx context.Context, p Profile) error {
	return c.client.Del(ctx, profileKeyPrefix+"uid:"+p.UID, profileKeyPrefix+"username:"+p.Username).Err()
}

func (c *CachedProfiles) lookup(ctx context.Context, key string, load func(context.Context) (*Profile, error)) (*Profile, error) {
	fullKey := profileKeyPrefix + key

	raw, err := c.client.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		var p Profile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt profile cache entry", "key", fullKey)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "profile cache read failed", "error", err, "key", fullKey)
	}

	ch := c.group.DoChan(fullKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		p, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if encoded, err := json.Marshal(p); err == nil {
			if err := c.client.Set(loadCtx, fullKey, encoded, c.ttl).Err(); err != nil {
				c.logger.WarnContext(loadCtx, "profile cache write failed", "error", err, "key", fullKey)
			}
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, sentinel.ErrNotFound) {
				return nil, sentinel.ErrNotFound
			}
			return nil, res.Err
		}
		out := *res.Val.(*Profile)
		return &out, nil
	}
}
