package baitchannel

import (
	"discord-baitchannel-bot/internal/metrics"

	"go.uber.org/zap"
)

// attempt runs a side effect whose failure must not change the outcome.
// Errors are logged and counted, never returned.
func (e *Engine) attempt(op string, fields []zap.Field, fn func() error) {
	if err := fn(); err != nil {
		metrics.PlatformErrorsTotal.WithLabelValues(op).Inc()
		e.logger.Warn("bait channel side effect failed", withOp(fields, op, err)...)
	}
}

// storeFailed records a persistence error. The decision flow carries on.
func (e *Engine) storeFailed(op string, err error, fields []zap.Field) {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	e.logger.Error("bait channel store operation failed", withOp(fields, op, err)...)
}

func withOp(fields []zap.Field, op string, err error) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	out = append(out, fields...)
	return append(out, zap.String("op", op), zap.Error(err))
}

func messageFields(msg *Message) []zap.Field {
	return []zap.Field{
		zap.String("guild_id", msg.GuildID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("message_id", msg.ID),
		zap.String("user_id", msg.AuthorID),
	}
}
