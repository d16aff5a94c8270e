package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/localnerve/minisitedb/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PointerCache caches minisite records between requests. Every write path
// invalidates the affected ids. A reader takes the generation of an id
// before loading it from the database and fills with that generation, so a
// row loaded before a committed write is never cached after it.
type PointerCache interface {
	Get(ctx context.Context, id string) (*models.Minisite, bool)
	// Generation returns the current generation of id. ok is false when the
	// cache cannot tell, and the caller should not fill.
	Generation(ctx context.Context, id string) (gen uint64, ok bool)
	// Fill caches m unless m.ID was invalidated since gen was read.
	Fill(ctx context.Context, m *models.Minisite, gen uint64)
	Invalidate(ctx context.Context, ids ...string)
}

// DefaultCacheTTL applies when a cache is built with a zero ttl
const DefaultCacheTTL = 5 * time.Minute

// Redis key prefixes of cached records and of their generations
const (
	PrefixMinisite   = "minisite:"
	PrefixGeneration = "minisite-gen:"
)

// generationTTL bounds how long an idle generation counter is kept
const generationTTL = 24 * time.Hour

func clone(m *models.Minisite) *models.Minisite {
	if m == nil {
		return nil
	}
	out := *m
	if m.CurrentVersionID != nil {
		id := *m.CurrentVersionID
		out.CurrentVersionID = &id
	}
	if m.PublishedAt != nil {
		at := *m.PublishedAt
		out.PublishedAt = &at
	}
	if m.Geo != nil {
		geo := *m.Geo
		out.Geo = &geo
	}
	out.SiteJSON.JSON = append(out.SiteJSON.JSON[:0:0], m.SiteJSON.JSON...)
	return &out
}

// NopPointerCache never holds anything
type NopPointerCache struct{}

func (NopPointerCache) Get(context.Context, string) (*models.Minisite, bool) { return nil, false }
func (NopPointerCache) Generation(context.Context, string) (uint64, bool)    { return 0, false }
func (NopPointerCache) Fill(context.Context, *models.Minisite, uint64)       {}
func (NopPointerCache) Invalidate(context.Context, ...string)                {}

type memoryEntry struct {
	record  *models.Minisite
	expires time.Time
}

// MemoryPointerCache is an in-process cache with a per-entry ttl.
type MemoryPointerCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	gens    map[string]uint64
	now     func() time.Time
}

// NewMemoryPointerCache creates an in-process cache
func NewMemoryPointerCache(ttl time.Duration) *MemoryPointerCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryPointerCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

func (c *MemoryPointerCache) Get(_ context.Context, id string) (*models.Minisite, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil, false
	}
	return clone(entry.record), true
}

func (c *MemoryPointerCache) Generation(_ context.Context, id string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[id], true
}

func (c *MemoryPointerCache) Fill(_ context.Context, m *models.Minisite, gen uint64) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[m.ID] != gen {
		return
	}
	c.entries[m.ID] = memoryEntry{record: clone(m), expires: c.now().Add(c.ttl)}
}

func (c *MemoryPointerCache) Invalidate(_ context.Context, ids ...string) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.entries, id)
		c.gens[id]++
	}
	c.mu.Unlock()
}

// Len returns the number of held entries, expired ones included
func (c *MemoryPointerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisPointerCache stores records as JSON in redis. A nil client turns
// every call into a miss or a no-op.
type RedisPointerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPointerCache wraps an existing client
func NewRedisPointerCache(client *redis.Client, ttl time.Duration) *RedisPointerCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisPointerCache{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// url into a client
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *RedisPointerCache) key(id string) string {
	return PrefixMinisite + id
}

func (c *RedisPointerCache) genKey(id string) string {
	return PrefixGeneration + id
}

// IsAvailable reports whether a client is configured
func (c *RedisPointerCache) IsAvailable() bool {
	return c.client != nil
}

// Ping checks the redis connection
func (c *RedisPointerCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *RedisPointerCache) Get(ctx context.Context, id string) (*models.Minisite, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("minisite_id", id).Msg("pointer cache get failed")
		}
		return nil, false
	}
	var m models.Minisite
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn().Err(err).Str("minisite_id", id).Msg("pointer cache entry undecodable")
		return nil, false
	}
	return &m, true
}

func (c *RedisPointerCache) Generation(ctx context.Context, id string) (uint64, bool) {
	if c.client == nil {
		return 0, false
	}
	gen, err := c.client.Get(ctx, c.genKey(id)).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("minisite_id", id).Msg("pointer cache generation failed")
		return 0, false
	}
	return gen, true
}

var errStaleFill = errors.New("generation moved")

// Fill writes m under WATCH of its generation key, so an Invalidate landing
// between the check and the write aborts the transaction.
func (c *RedisPointerCache) Fill(ctx context.Context, m *models.Minisite, gen uint64) {
	if c.client == nil || m == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		log.Warn().Err(err).Str("minisite_id", m.ID).Msg("pointer cache encode failed")
		return
	}

	genKey := c.genKey(m.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(m.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
	default:
		log.Warn().Err(err).Str("minisite_id", m.ID).Msg("pointer cache set failed")
	}
}

func (c *RedisPointerCache) Invalidate(ctx context.Context, ids ...string) {
	if c.client == nil || len(ids) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, c.key(id))
			pipe.Incr(ctx, c.genKey(id))
			pipe.Expire(ctx, c.genKey(id), generationTTL)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Strs("minisite_ids", ids).Msg("pointer cache invalidate failed")
	}
}
