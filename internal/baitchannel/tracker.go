package baitchannel

import (
	"context"
	"discord-baitchannel-bot/internal/metrics"
	"time"

	"go.uber.org/zap"
)

// Tracker counts ordinary messages per member. Concurrent updates for the
// same member are last-write-wins on last_seen.
type Tracker struct {
	configs  ConfigSource
	activity ActivityStore
	now      func() time.Time
	logger   *zap.Logger
}

func NewTracker(configs ConfigSource, activity ActivityStore, now func() time.Time, logger *zap.Logger) *Tracker {
	return &Tracker{
		configs:  configs,
		activity: activity,
		now:      now,
		logger:   logger,
	}
}

// Track records msg unless it is from a bot, outside a guild, or posted in
// the guild's bait channel.
func (t *Tracker) Track(ctx context.Context, msg *Message) {
	if msg.GuildID == "" || msg.AuthorBot || msg.WebhookID != "" {
		return
	}

	cfg, err := t.configs.Get(ctx, msg.GuildID)
	if err != nil {
		// Still count it; the bait check only filters one channel.
		t.logger.Warn("activity tracker could not load config", append(messageFields(msg), zap.Error(err))...)
	}
	if cfg != nil && cfg.ChannelID == msg.ChannelID {
		return
	}

	var joinedAt int64
	if !msg.MemberJoinedAt.IsZero() {
		joinedAt = msg.MemberJoinedAt.UnixMilli()
	}

	if err := t.activity.RecordMessage(ctx, msg.GuildID, msg.AuthorID, joinedAt, t.now().UnixMilli()); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("record_activity").Inc()
		t.logger.Error("activity record failed", append(messageFields(msg), zap.Error(err))...)
	}
}
