package baitchannel

import (
	"context"
	"discord-baitchannel-bot/internal/metrics"
	"discord-baitchannel-bot/internal/models"
	"discord-baitchannel-bot/internal/utils"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// decide either acts now or arms a grace period.
func (e *Engine) decide(ctx context.Context, member *Member, msg *Message, cfg *models.DetectionConfig, analysis SuspicionAnalysis) {
	switch {
	case cfg.GracePeriodSeconds <= 0:
		e.execute(ctx, member, msg, cfg, analysis, "Instant action mode")
	case analysis.Score >= InstantActionScore:
		e.execute(ctx, member, msg, cfg, analysis, fmt.Sprintf("High suspicion score (%d/100)", analysis.Score))
	default:
		e.arm(ctx, member, msg, cfg, analysis)
	}
}

// arm records the decision before anything can resolve it, then sends the
// warning and starts the timer.
func (e *Engine) arm(ctx context.Context, member *Member, msg *Message, cfg *models.DetectionConfig, analysis SuspicionAnalysis) {
	key := Key{UserID: msg.AuthorID, MessageID: msg.ID}
	fields := messageFields(msg)

	d := &PendingDecision{
		Key:       key,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		ArmedAt:   e.now(),
		Score:     analysis.Score,
		Analysis:  analysis,
		Member:    member,
		Message:   msg,
		Config:    cfg,
	}
	if !e.pending.Put(d) {
		e.logger.Debug("grace period already armed", fields...)
		return
	}

	var warningID string
	e.attempt("send_warning", fields, func() error {
		id, err := e.platform.Reply(ctx, msg.ChannelID, msg.ID,
			fmt.Sprintf("<@%s>", msg.AuthorID),
			utils.BaitWarningEmbed(msg.AuthorID, analysis.Score, analysis.Reasons, cfg.GracePeriodSeconds))
		warningID = id
		return err
	})

	grace := time.Duration(cfg.GracePeriodSeconds) * time.Second
	timer := e.scheduler.AfterFunc(grace, func() { e.expire(key) })

	if !e.pending.Attach(key, warningID, timer) {
		// Resolved before we got here; the resolver could not see the warning.
		timer.Stop()
		e.deleteWarning(ctx, msg.ChannelID, warningID, fields)
		return
	}

	e.logger.Info("grace period armed", append(fields, zap.Int("score", analysis.Score), zap.Duration("grace", grace))...)
}

// expire runs when the grace period ends. Take comes before the message
// fetch, so whichever of expire and HandleMessageDelete takes the decision
// first owns the outcome and the other does nothing.
func (e *Engine) expire(key Key) {
	d, ok := e.pending.Take(key)
	if !ok {
		e.logger.Debug("grace period already resolved", zap.String("user_id", key.UserID), zap.String("message_id", key.MessageID))
		return
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.opTimeout)
	defer cancel()

	fields := messageFields(d.Message)

	if err := e.fetchTriggering(ctx, d, fields); err != nil {
		if !errors.Is(err, ErrMessageNotFound) {
			e.logger.Warn("message fetch failed after grace period, treating as deleted", append(fields, zap.Error(err))...)
		}
		e.resolveDeleted(ctx, d, "Deleted before grace period expired")
		return
	}

	e.execute(ctx, d.Member, d.Message, d.Config, d.Analysis, "Grace period expired")
	e.deleteWarning(ctx, d.ChannelID, d.WarningMessageID, fields)
}

// fetchTriggering re-reads the triggering message. An error other than
// ErrMessageNotFound is retried once after fetchRetryDelay.
func (e *Engine) fetchTriggering(ctx context.Context, d *PendingDecision, fields []zap.Field) error {
	_, err := e.platform.FetchMessage(ctx, d.ChannelID, d.MessageID)
	if err == nil || errors.Is(err, ErrMessageNotFound) {
		return err
	}

	metrics.PlatformErrorsTotal.WithLabelValues("fetch_message").Inc()
	e.logger.Info("message fetch failed, retrying", append(fields, zap.Error(err))...)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.fetchRetryDelay):
	}
	_, err = e.platform.FetchMessage(ctx, d.ChannelID, d.MessageID)
	return err
}

// resolveDeleted closes a decision whose message is gone. No platform
// action is taken against the member.
func (e *Engine) resolveDeleted(ctx context.Context, d *PendingDecision, detection string) {
	entry := e.newLogEntry(d.Member, d.Message, d.Analysis, models.BaitActionDeletedInTime, detection)
	e.finish(ctx, d.Config, entry)
	e.deleteWarning(ctx, d.ChannelID, d.WarningMessageID, messageFields(d.Message))
}

func (e *Engine) deleteWarning(ctx context.Context, channelID, warningID string, fields []zap.Field) {
	if warningID == "" {
		return
	}
	e.attempt("delete_warning", fields, func() error {
		return e.platform.DeleteMessage(ctx, channelID, warningID)
	})
}
