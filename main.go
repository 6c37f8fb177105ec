package main

import (
	"context"
	"discord-baitchannel-bot/internal/baitchannel"
	"discord-baitchannel-bot/internal/bot"
	"discord-baitchannel-bot/internal/cache"
	"discord-baitchannel-bot/internal/config"
	"discord-baitchannel-bot/internal/database"
	"discord-baitchannel-bot/internal/logging"
	"discord-baitchannel-bot/internal/redis"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", envOr("BAIT_CONFIG", "config.json"), "path to config file (json or yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Trade memory for fewer GC pauses; the process is mostly idle
	// between gateway events.
	gcPercent := 200
	debug.SetGCPercent(gcPercent)
	memoryLimit := int64(1 << 30)
	debug.SetMemoryLimit(memoryLimit)
	logger.Info("runtime tuned",
		zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)),
		zap.Int("gc_percent", gcPercent),
		zap.Int64("memory_limit_mb", memoryLimit>>20))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.Open(startCtx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("store ready", zap.String("driver", db.Driver()))

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.New(startCtx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
	} else {
		logger.Info("redis disabled, config cache is process-local")
	}

	configs, err := cache.NewConfigCache(db, rdb, cfg.CacheOptions(), logger)
	if err != nil {
		return err
	}
	defer configs.Close()

	b, err := bot.New(cfg.Token, cfg.Metrics.Addr, logger)
	if err != nil {
		return err
	}

	engine, err := baitchannel.New(baitchannel.Options{
		Platform:    b.Platform(),
		Configs:     configs,
		ConfigStore: db,
		Activity:    db,
		Audit:       db,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	b.SetDetector(engine)

	if err := b.Start(ctx); err != nil {
		return err
	}

	m := configs.GetMetrics()
	logger.Info("shutdown complete",
		zap.Int("pending_dropped", engine.PendingCount()),
		zap.Float64("config_cache_hit_rate", m.HitRate))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
