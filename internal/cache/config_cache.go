package cache

import (
	"context"
	"discord-baitchannel-bot/internal/metrics"
	"discord-baitchannel-bot/internal/models"
	"discord-baitchannel-bot/internal/redis"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader reads detection configuration from the persistent store.
type Loader interface {
	GetDetectionConfig(ctx context.Context, guildID string) (*models.DetectionConfig, error)
}

// ConfigCache fronts the store with an in-memory L1 (ristretto) and an
// optional L2 (Redis). Entries never expire on their own; Invalidate is the
// only way to drop one.
type ConfigCache struct {
	l1           *ristretto.Cache
	l2           *redis.Client
	l2TTL        time.Duration
	store        Loader
	logger       *zap.Logger
	singleflight singleflight.Group

	// guildID -> *generation
	generations sync.Map

	// Metrics
	l1Hits   atomic.Uint64
	l2Hits   atomic.Uint64
	misses   atomic.Uint64
	loadErrs atomic.Uint64
}

// Config for cache initialization
type Config struct {
	L1MaxEntries  int64         // default: 10k guilds
	L1NumCounters int64         // default: 10x entries
	L2TTL         time.Duration // default: 1h
}

// generation is bumped by every Invalidate. A load only populates the
// cache if the generation it started under is still current.
type generation struct {
	mu  sync.Mutex
	gen uint64
}

// entry wraps a config so "not configured" (nil) can be cached too.
type entry struct {
	Configured bool                    `json:"configured"`
	Config     *models.DetectionConfig `json:"config,omitempty"`
}

// NewConfigCache creates the detection config cache. l2 may be nil.
func NewConfigCache(store Loader, l2 *redis.Client, cfg Config, logger *zap.Logger) (*ConfigCache, error) {
	if cfg.L1MaxEntries == 0 {
		cfg.L1MaxEntries = 10000
	}
	if cfg.L1NumCounters == 0 {
		cfg.L1NumCounters = cfg.L1MaxEntries * 10
	}
	if cfg.L2TTL == 0 {
		cfg.L2TTL = time.Hour
	}

	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.L1NumCounters,
		MaxCost:     cfg.L1MaxEntries,
		BufferItems: 64,
		// Cost is counted in entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &ConfigCache{
		l1:     l1,
		l2:     l2,
		l2TTL:  cfg.L2TTL,
		store:  store,
		logger: logger,
	}, nil
}

// Get returns the guild's configuration, or nil if the guild has none.
// The returned value is shared and must not be modified.
func (c *ConfigCache) Get(ctx context.Context, guildID string) (*models.DetectionConfig, error) {
	key := cacheKey(guildID)

	if val, found := c.l1.Get(key); found {
		c.l1Hits.Add(1)
		metrics.ConfigCacheRequestsTotal.WithLabelValues("l1_hit").Inc()
		return val.(*entry).Config, nil
	}

	g := c.generationFor(guildID)
	g.mu.Lock()
	gen := g.gen
	g.mu.Unlock()

	if e, ok := c.getL2(ctx, key); ok {
		c.l2Hits.Add(1)
		metrics.ConfigCacheRequestsTotal.WithLabelValues("l2_hit").Inc()
		c.populate(ctx, guildID, gen, e, false)
		return e.Config, nil
	}

	c.misses.Add(1)
	metrics.ConfigCacheRequestsTotal.WithLabelValues("miss").Inc()

	// The generation is part of the flight key so a Get issued after an
	// Invalidate never joins a load that started before it.
	val, err, _ := c.singleflight.Do(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		cfg, err := c.store.GetDetectionConfig(ctx, guildID)
		if err != nil {
			return nil, err
		}
		e := &entry{Configured: cfg != nil, Config: cfg}
		c.populate(ctx, guildID, gen, e, true)
		return e, nil
	})
	if err != nil {
		c.loadErrs.Add(1)
		return nil, fmt.Errorf("load bait config for guild %s: %w", guildID, err)
	}

	return val.(*entry).Config, nil
}

// Invalidate drops the cached entry for a guild from every layer.
func (c *ConfigCache) Invalidate(guildID string) {
	key := cacheKey(guildID)
	g := c.generationFor(guildID)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	c.l1.Del(key)
	if c.l2 != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.l2.Del(ctx, key); err != nil {
			c.logger.Warn("config cache L2 invalidate failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}

	c.logger.Debug("config cache invalidated", zap.String("guild_id", guildID), zap.Uint64("generation", g.gen))
}

// populate stores e in L1 (and L2 when writeL2) unless the guild was
// invalidated since gen was read.
func (c *ConfigCache) populate(ctx context.Context, guildID string, gen uint64, e *entry, writeL2 bool) {
	g := c.generationFor(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.gen != gen {
		return
	}

	key := cacheKey(guildID)
	c.l1.Set(key, e, 1)
	// Sets are buffered; flush while holding g.mu so a later Invalidate
	// cannot race ahead of this write.
	c.l1.Wait()

	if writeL2 && c.l2 != nil {
		b, err := json.Marshal(e)
		if err != nil {
			c.logger.Warn("config cache encode failed", zap.String("guild_id", guildID), zap.Error(err))
			return
		}
		if err := c.l2.Set(ctx, key, b, c.l2TTL); err != nil {
			c.logger.Warn("config cache L2 write failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
}

func (c *ConfigCache) getL2(ctx context.Context, key string) (*entry, bool) {
	if c.l2 == nil {
		return nil, false
	}

	b, err := c.l2.GetBytes(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			c.logger.Warn("config cache L2 read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		c.logger.Warn("config cache L2 entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !e.Configured {
		e.Config = nil
	}
	return &e, true
}

func (c *ConfigCache) generationFor(guildID string) *generation {
	if g, ok := c.generations.Load(guildID); ok {
		return g.(*generation)
	}
	g, _ := c.generations.LoadOrStore(guildID, &generation{})
	return g.(*generation)
}

func cacheKey(guildID string) string {
	return "baitcfg:" + guildID
}

// GetMetrics returns cache performance metrics
func (c *ConfigCache) GetMetrics() Metrics {
	hits := c.l1Hits.Load() + c.l2Hits.Load()
	total := hits + c.misses.Load()

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Metrics{
		L1Hits:     c.l1Hits.Load(),
		L2Hits:     c.l2Hits.Load(),
		Misses:     c.misses.Load(),
		LoadErrors: c.loadErrs.Load(),
		HitRate:    hitRate,
	}
}

// Metrics holds cache performance data
type Metrics struct {
	L1Hits     uint64
	L2Hits     uint64
	Misses     uint64
	LoadErrors uint64
	HitRate    float64
}

// Close gracefully shuts down the cache
func (c *ConfigCache) Close() {
	c.l1.Close()
}
