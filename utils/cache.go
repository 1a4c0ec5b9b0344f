package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/billboard/store"
)

const listCachePrefix = "cache:articles:list:"

// ListCache keeps unfiltered article list pages in Redis. An entry never
// outlives the earliest end date among its items, so an expired article
// cannot be served from cache.
type ListCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewListCache returns a cache with the given maximum ttl.
func NewListCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *ListCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ListCache{rdb: rdb, ttl: ttl, log: log}
}

func listKey(page, size int) string {
	return fmt.Sprintf("%spage=%d:size=%d", listCachePrefix, page, size)
}

// Get returns a cached page.
func (c *ListCache) Get(ctx context.Context, page, size int) (store.ArticlePage, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.rdb.Get(ctx, listKey(page, size)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache get failed", zap.Int("page", page), zap.Error(err))
		}
		return store.ArticlePage{}, false
	}
	var p store.ArticlePage
	if err := json.Unmarshal(b, &p); err != nil {
		return store.ArticlePage{}, false
	}
	return p, true
}

// Set stores p computed at now. The entry expires no later than until, nor
// past the earliest end date among the items.
func (c *ListCache) Set(ctx context.Context, p store.ArticlePage, now time.Time, until *time.Time) {
	ttl := c.ttl
	if until != nil {
		if left := until.Sub(now); left < ttl {
			ttl = left
		}
	}
	for _, a := range p.Items {
		if a.EndDate == nil {
			continue
		}
		if left := a.EndDate.Sub(now); left < ttl {
			ttl = left
		}
	}
	if ttl < time.Second {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Set(ctx, listKey(p.Page, p.Size), b, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.Int("page", p.Page), zap.Error(err))
	}
}

// Invalidate drops every cached list page using SCAN.
func (c *ListCache) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, listCachePrefix+"*", 1000).Result()
		if err != nil {
			c.log.Warn("cache invalidate failed", zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.log.Warn("cache invalidate failed", zap.Int("keys", len(keys)), zap.Error(err))
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
