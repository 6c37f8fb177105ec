package baitchannel

import (
	"context"
	"discord-baitchannel-bot/internal/metrics"
	"discord-baitchannel-bot/internal/models"
	"discord-baitchannel-bot/internal/utils"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Discord rejects audit log reasons longer than this.
const maxAuditReason = 512

const auditWriteTimeout = 10 * time.Second

// execute applies the configured action and always writes one log entry.
func (e *Engine) execute(ctx context.Context, member *Member, msg *Message, cfg *models.DetectionConfig, analysis SuspicionAnalysis, reason string) models.BaitAction {
	fields := messageFields(msg)

	e.attempt("delete_message", fields, func() error {
		return e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	})

	action := models.ActionOutcome(cfg.ActionType)
	var failure string

	auditReason := renderReason(cfg.BanReason, reason, analysis.Score)
	var err error
	switch cfg.ActionType {
	case models.ActionTypeBan:
		err = e.platform.Ban(ctx, msg.GuildID, msg.AuthorID, auditReason, cfg.PurgeDays())
	case models.ActionTypeKick:
		err = e.platform.Kick(ctx, msg.GuildID, msg.AuthorID, auditReason)
	}
	if err != nil {
		// Never retried
		action = models.BaitActionFailed
		failure = err.Error()
		metrics.PlatformErrorsTotal.WithLabelValues(cfg.ActionType).Inc()
		e.logger.Error("bait channel action failed", append(fields, zap.String("op", cfg.ActionType), zap.Error(err))...)
	}

	entry := e.newLogEntry(member, msg, analysis, action, reason)
	entry.FailureReason = failure
	e.finish(ctx, cfg, entry)

	e.logger.Info("bait channel action taken",
		append(fields, zap.String("outcome", string(action)), zap.String("detection", reason))...)
	return action
}

// finish posts the log channel notice and writes the audit entry. The
// audit write runs on its own deadline so a slow platform cannot skip it.
func (e *Engine) finish(ctx context.Context, cfg *models.DetectionConfig, entry *models.BaitLogEntry) {
	fields := []zap.Field{
		zap.String("guild_id", entry.GuildID),
		zap.String("user_id", entry.UserID),
		zap.String("message_id", entry.MessageID),
	}

	if cfg.LogChannelID != "" {
		e.attempt("send_log", fields, func() error {
			return e.platform.SendEmbed(ctx, cfg.LogChannelID, utils.BaitLogEmbed(entry))
		})
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := e.audit.InsertBaitLog(auditCtx, entry); err != nil {
		e.storeFailed("insert_log", err, fields)
	}

	metrics.DetectionsTotal.WithLabelValues(string(entry.Action)).Inc()
}

func (e *Engine) newLogEntry(member *Member, msg *Message, analysis SuspicionAnalysis, action models.BaitAction, detection string) *models.BaitLogEntry {
	username := msg.AuthorName
	if member != nil && member.Username != "" {
		username = member.Username
	}

	return &models.BaitLogEntry{
		ID:                uuid.NewString(),
		GuildID:           msg.GuildID,
		UserID:            msg.AuthorID,
		Username:          username,
		ChannelID:         msg.ChannelID,
		MessageID:         msg.ID,
		MessageContent:    models.TruncateContent(msg.Content),
		Action:            action,
		DetectionReason:   detection,
		SuspicionScore:    analysis.Score,
		Flags:             analysis.Flags,
		Reasons:           analysis.Reasons,
		AccountAgeDays:    analysis.AccountAgeDays,
		MembershipMinutes: analysis.MembershipMinutes,
		MessageCount:      analysis.MessageCount,
		HasVerifiedRole:   analysis.HasVerifiedRole,
		CreatedAt:         e.now().UnixMilli(),
	}
}

// renderReason fills {reason} and {score} in the configured template.
func renderReason(template, reason string, score int) string {
	if template == "" {
		template = "Bait channel: {reason}"
	}
	out := strings.NewReplacer(
		"{reason}", reason,
		"{score}", strconv.Itoa(score),
	).Replace(template)

	if r := []rune(out); len(r) > maxAuditReason {
		out = string(r[:maxAuditReason])
	}
	return out
}
