package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// handlerTimeout bounds the REST work one gateway event can start.
const handlerTimeout = 30 * time.Second

func (b *Bot) Ready(s *discordgo.Session, r *discordgo.Ready) {
	// Manually populate state user since state tracking is disabled
	if s.State.User == nil {
		s.State.User = r.User
	}

	b.Logger.Info("gateway ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

// MessageCreate fans each message out to the bait channel check and the
// activity tracker. Neither blocks the gateway goroutine.
func (b *Bot) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	start := time.Now()
	defer func() { b.PerfMonitor.TrackEvent(time.Since(start)) }()

	// Fast-path: skip bots and DMs immediately
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	msg := toMessage(m.Message)

	go b.withTimeout(func(ctx context.Context) { b.detector.HandleMessage(ctx, msg) })
	go b.withTimeout(func(ctx context.Context) { b.detector.TrackMessage(ctx, msg) })
}

func (b *Bot) MessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	start := time.Now()
	defer func() { b.PerfMonitor.TrackEvent(time.Since(start)) }()

	if m.GuildID == "" {
		return
	}

	id, guildID := m.ID, m.GuildID
	go b.withTimeout(func(ctx context.Context) { b.detector.HandleMessageDelete(ctx, id, guildID) })
}

func (b *Bot) withTimeout(fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("gateway handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	fn(ctx)
}
