package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// currentCacheVersion defines the version of the cached discovery payload.
const currentCacheVersion = 1

// CachedDiscoverer serves complete discovery results from a CacheStore.
type CachedDiscoverer struct {
	Inner     contract.Discoverer
	Store     contract.CacheStore
	Predicate string
	TTL       time.Duration
	Refresh   bool // skip the lookup but still store the fresh result
	Now       func() time.Time
	Logger    *slog.Logger
}

var _ contract.Discoverer = &CachedDiscoverer{}

// Discover returns a cached result when one is fresh, otherwise delegates and stores.
// Partial results are never stored.
func (c *CachedDiscoverer) Discover(ctx context.Context, limit int) ([]schema.RepositoryDescriptor, error) {
	if c.Store == nil || limit <= 0 {
		return c.Inner.Discover(ctx, limit)
	}

	logger := contract.LoggerOrDiscard(c.Logger)
	key := CacheKey(c.Predicate, limit)

	if !c.Refresh {
		if repos := c.checkCacheHit(key); repos != nil {
			logger.Info("using cached discovery", "count", len(repos))
			return repos, nil
		}
	}

	repos, err := c.Inner.Discover(ctx, limit)
	if err != nil {
		return repos, err
	}
	if data, err := json.Marshal(repos); err == nil {
		if err := c.Store.Set(key, data, currentCacheVersion, c.now().Unix()); err != nil {
			logger.Warn("failed to store discovery cache", "error", err)
		}
	}
	return repos, nil
}

// checkCacheHit attempts to retrieve and validate a cached result.
func (c *CachedDiscoverer) checkCacheHit(key string) []schema.RepositoryDescriptor {
	data, version, ts, err := c.Store.Get(key)
	if err != nil || version != currentCacheVersion {
		return nil
	}
	now := c.now()
	if c.TTL > 0 && now.Sub(time.Unix(ts, 0)) > c.TTL {
		return nil
	}
	var repos []schema.RepositoryDescriptor
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil
	}
	for i := range repos {
		repos[i].AgeDays = AgeDays(repos[i].CreatedAt, now)
	}
	return repos
}

func (c *CachedDiscoverer) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// CacheKey identifies a discovery by predicate and target count.
func CacheKey(predicate string, limit int) string {
	key := fmt.Sprintf("discover:%s:%d", predicate, limit)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
