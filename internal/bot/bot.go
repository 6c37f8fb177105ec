package bot

import (
	"context"
	"discord-baitchannel-bot/internal/baitchannel"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Detector is what the gateway handlers feed.
type Detector interface {
	HandleMessage(ctx context.Context, msg *baitchannel.Message)
	HandleMessageDelete(ctx context.Context, messageID, guildID string)
	TrackMessage(ctx context.Context, msg *baitchannel.Message)
}

type Bot struct {
	Session     *discordgo.Session
	Logger      *zap.Logger
	PerfMonitor *PerformanceMonitor
	StartTime   time.Time

	detector    Detector
	metricsAddr string
}

// New creates the Discord session. Call SetDetector before Start.
func New(token, metricsAddr string, logger *zap.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("session error: %w", err)
	}

	// Pooled keep-alive transport for REST calls
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       120 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       50,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	perfMonitor := NewPerformanceMonitor()

	s.Client = &http.Client{
		Transport: &PerfTransport{
			Base:    tr,
			Monitor: perfMonitor,
		},
		Timeout: 15 * time.Second,
	}

	// Members, guilds and messages are fetched over REST when needed
	s.StateEnabled = false

	s.ShouldReconnectOnError = true
	s.ShouldRetryOnRateLimit = true
	s.MaxRestRetries = 3

	b := &Bot{
		Session:     s,
		Logger:      logger,
		PerfMonitor: perfMonitor,
		StartTime:   time.Now(),
		metricsAddr: metricsAddr,
	}

	s.AddHandler(b.Ready)
	s.AddHandler(b.MessageCreate)
	s.AddHandler(b.MessageDelete)

	return b, nil
}

// Platform returns the Discord adapter used by the detection engine.
func (b *Bot) Platform() *Platform {
	return NewPlatform(b.Session)
}

func (b *Bot) SetDetector(d Detector) {
	b.detector = d
}

// Start connects to the gateway and blocks until ctx is cancelled or the
// metrics server fails.
func (b *Bot) Start(ctx context.Context) error {
	if b.detector == nil {
		return errors.New("bot: no detector configured")
	}

	b.Logger.Info("connecting to Discord gateway")
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("gateway connection failed: %w", err)
	}

	// State is disabled, so the bot user has to be fetched
	if b.Session.State.User == nil {
		u, err := b.Session.User("@me")
		if err != nil {
			return fmt.Errorf("failed to get bot user: %w", err)
		}
		b.Session.State.User = u
	}
	b.Logger.Info("logged in",
		zap.String("user", b.Session.State.User.Username),
		zap.String("user_id", b.Session.State.User.ID))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.monitorHeartbeat(ctx)
		return nil
	})

	if b.metricsAddr != "" {
		srv := &http.Server{
			Addr:              b.metricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			b.Logger.Info("metrics server listening", zap.String("addr", b.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	b.Logger.Info("bait channel watcher running")
	err := g.Wait()

	if closeErr := b.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (b *Bot) Close() error {
	b.Logger.Info("shutting down gateway session")
	return b.Session.Close()
}

// metricsMux serves Prometheus metrics next to pprof.
func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// monitorHeartbeat logs gateway latency and perf stats every 30 seconds
func (b *Bot) monitorHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		latency := b.Session.HeartbeatLatency()
		b.PerfMonitor.UpdateWSLatency(latency)
		b.logHeartbeat(latency)
	}
}

func (b *Bot) logHeartbeat(latency time.Duration) {
	stats := zap.Any("stats", b.PerfMonitor.GetStats())
	if latency > 250*time.Millisecond {
		b.Logger.Warn("high gateway latency", zap.Duration("latency", latency), stats)
		return
	}
	b.Logger.Debug("gateway heartbeat", zap.Duration("latency", latency), stats)
}
