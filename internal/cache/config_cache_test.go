package cache

import (
	"context"
	"discord-baitchannel-bot/internal/models"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLoader struct {
	mu      sync.Mutex
	configs map[string]*models.DetectionConfig
	err     error
	calls   atomic.Int32

	// when set, GetDetectionConfig blocks until it is closed
	gate chan struct{}
	// signalled once a load has started
	started chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{configs: make(map[string]*models.DetectionConfig)}
}

func (f *fakeLoader) GetDetectionConfig(ctx context.Context, guildID string) (*models.DetectionConfig, error) {
	f.calls.Add(1)

	// Read first, then block: a gated load returns what the store held
	// when it started.
	f.mu.Lock()
	gate, started, err := f.gate, f.started, f.err
	var cp *models.DetectionConfig
	if cfg, ok := f.configs[guildID]; ok {
		c := *cfg
		cp = &c
	}
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (f *fakeLoader) put(cfg *models.DetectionConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[cfg.GuildID] = cfg
}

func newTestCache(t *testing.T, loader Loader) *ConfigCache {
	t.Helper()
	c, err := NewConfigCache(loader, nil, Config{L1MaxEntries: 100}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestConfigCache_HitAfterLoad(t *testing.T) {
	loader := newFakeLoader()
	loader.put(models.DefaultDetectionConfig("g1", "bait"))
	c := newTestCache(t, loader)
	ctx := context.Background()

	cfg, err := c.Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "bait", cfg.ChannelID)

	c.l1.Wait()

	cfg, err = c.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "bait", cfg.ChannelID)
	assert.Equal(t, int32(1), loader.calls.Load())

	m := c.GetMetrics()
	assert.Equal(t, uint64(1), m.L1Hits)
	assert.Equal(t, uint64(1), m.Misses)
}

func TestConfigCache_NotConfiguredIsCached(t *testing.T) {
	loader := newFakeLoader()
	c := newTestCache(t, loader)
	ctx := context.Background()

	cfg, err := c.Get(ctx, "none")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	c.l1.Wait()

	cfg, err = c.Get(ctx, "none")
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestConfigCache_InvalidateReflectsLatestWrite(t *testing.T) {
	loader := newFakeLoader()
	loader.put(models.DefaultDetectionConfig("g1", "old"))
	c := newTestCache(t, loader)
	ctx := context.Background()

	_, err := c.Get(ctx, "g1")
	require.NoError(t, err)
	c.l1.Wait()

	loader.put(models.DefaultDetectionConfig("g1", "new"))
	c.Invalidate("g1")
	c.l1.Wait()

	cfg, err := c.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.ChannelID)
}

func TestConfigCache_InvalidateNeverServesStaleEntry(t *testing.T) {
	loader := newFakeLoader()
	c := newTestCache(t, loader)
	ctx := context.Background()

	// No Wait calls: the cache itself must order buffered L1 writes.
	for i := 0; i < 2000; i++ {
		old := "old-" + strconv.Itoa(i)
		loader.put(models.DefaultDetectionConfig("g1", old))
		c.Invalidate("g1")
		cfg, err := c.Get(ctx, "g1")
		require.NoError(t, err)
		require.Equal(t, old, cfg.ChannelID)

		updated := "new-" + strconv.Itoa(i)
		loader.put(models.DefaultDetectionConfig("g1", updated))
		c.Invalidate("g1")

		for j := 0; j < 5; j++ {
			cfg, err = c.Get(ctx, "g1")
			require.NoError(t, err)
			require.Equal(t, updated, cfg.ChannelID, "round %d read %d", i, j)
		}
	}
}

func TestConfigCache_LoadStartedBeforeInvalidateIsNotCached(t *testing.T) {
	loader := newFakeLoader()
	loader.put(models.DefaultDetectionConfig("g1", "old"))
	gate := make(chan struct{})
	loader.gate = gate
	loader.started = make(chan struct{}, 1)
	c := newTestCache(t, loader)
	ctx := context.Background()

	done := make(chan *models.DetectionConfig)
	go func() {
		cfg, err := c.Get(ctx, "g1")
		assert.NoError(t, err)
		done <- cfg
	}()

	<-loader.started

	// A write lands while the first load is still in flight
	loader.mu.Lock()
	loader.gate = nil
	loader.started = nil
	loader.configs["g1"] = models.DefaultDetectionConfig("g1", "new")
	loader.mu.Unlock()
	c.Invalidate("g1")

	// The stale load still answers its caller, but must not populate the cache.
	close(gate)
	stale := <-done
	c.l1.Wait()
	assert.Equal(t, "old", stale.ChannelID)

	cfg, err := c.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.ChannelID)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestConfigCache_ConcurrentMissesShareLoad(t *testing.T) {
	loader := newFakeLoader()
	loader.put(models.DefaultDetectionConfig("g1", "bait"))
	gate := make(chan struct{})
	loader.gate = gate
	loader.started = make(chan struct{}, 1)
	c := newTestCache(t, loader)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := c.Get(ctx, "g1")
			assert.NoError(t, err)
			assert.Equal(t, "bait", cfg.ChannelID)
		}()
	}

	<-loader.started
	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, loader.calls.Load(), int32(10))
	assert.GreaterOrEqual(t, loader.calls.Load(), int32(1))
}

func TestConfigCache_LoadErrorNotCached(t *testing.T) {
	loader := newFakeLoader()
	loader.err = errors.New("connection refused")
	c := newTestCache(t, loader)
	ctx := context.Background()

	_, err := c.Get(ctx, "g1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	loader.mu.Lock()
	loader.err = nil
	loader.configs["g1"] = models.DefaultDetectionConfig("g1", "bait")
	loader.mu.Unlock()
	c.l1.Wait()

	cfg, err := c.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "bait", cfg.ChannelID)
	assert.Equal(t, uint64(1), c.GetMetrics().LoadErrors)
}
