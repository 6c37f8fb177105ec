package database

import (
	"context"
	"database/sql"
	"discord-baitchannel-bot/internal/models"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Bait Channel Configuration Operations

// GetDetectionConfig retrieves the bait channel configuration for a guild.
// A guild without a row is not configured: (nil, nil).
func (d *Database) GetDetectionConfig(ctx context.Context, guildID string) (*models.DetectionConfig, error) {
	cfg := &models.DetectionConfig{GuildID: guildID}
	var rolesJSON, usersJSON string

	err := d.db.QueryRowContext(ctx, `
		SELECT channel_id, enabled, grace_period_seconds, action_type, log_channel_id,
			enable_smart_detection, min_account_age_days, min_membership_minutes,
			min_message_count, require_verification, whitelisted_roles, whitelisted_users,
			disable_admin_whitelist, ban_reason, delete_user_messages, delete_message_days,
			created_at, updated_at
		FROM bait_channel_configs
		WHERE guild_id = $1
	`, guildID).Scan(
		&cfg.ChannelID, &cfg.Enabled, &cfg.GracePeriodSeconds, &cfg.ActionType, &cfg.LogChannelID,
		&cfg.EnableSmartDetection, &cfg.MinAccountAgeDays, &cfg.MinMembershipMinutes,
		&cfg.MinMessageCount, &cfg.RequireVerification, &rolesJSON, &usersJSON,
		&cfg.DisableAdminWhitelist, &cfg.BanReason, &cfg.DeleteUserMessages, &cfg.DeleteMessageDays,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query bait config for guild %s: %w", guildID, err)
	}

	if err := decodeIDs(rolesJSON, &cfg.WhitelistedRoles); err != nil {
		return nil, fmt.Errorf("decode whitelisted roles for guild %s: %w", guildID, err)
	}
	if err := decodeIDs(usersJSON, &cfg.WhitelistedUsers); err != nil {
		return nil, fmt.Errorf("decode whitelisted users for guild %s: %w", guildID, err)
	}

	return cfg, nil
}

// SaveDetectionConfig creates or replaces the configuration for cfg.GuildID.
func (d *Database) SaveDetectionConfig(ctx context.Context, cfg *models.DetectionConfig) error {
	rolesJSON, err := encodeIDs(cfg.WhitelistedRoles)
	if err != nil {
		return err
	}
	usersJSON, err := encodeIDs(cfg.WhitelistedUsers)
	if err != nil {
		return err
	}

	now := models.Now()
	if cfg.CreatedAt == 0 {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO bait_channel_configs (
			guild_id, channel_id, enabled, grace_period_seconds, action_type, log_channel_id,
			enable_smart_detection, min_account_age_days, min_membership_minutes,
			min_message_count, require_verification, whitelisted_roles, whitelisted_users,
			disable_admin_whitelist, ban_reason, delete_user_messages, delete_message_days,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (guild_id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			enabled = EXCLUDED.enabled,
			grace_period_seconds = EXCLUDED.grace_period_seconds,
			action_type = EXCLUDED.action_type,
			log_channel_id = EXCLUDED.log_channel_id,
			enable_smart_detection = EXCLUDED.enable_smart_detection,
			min_account_age_days = EXCLUDED.min_account_age_days,
			min_membership_minutes = EXCLUDED.min_membership_minutes,
			min_message_count = EXCLUDED.min_message_count,
			require_verification = EXCLUDED.require_verification,
			whitelisted_roles = EXCLUDED.whitelisted_roles,
			whitelisted_users = EXCLUDED.whitelisted_users,
			disable_admin_whitelist = EXCLUDED.disable_admin_whitelist,
			ban_reason = EXCLUDED.ban_reason,
			delete_user_messages = EXCLUDED.delete_user_messages,
			delete_message_days = EXCLUDED.delete_message_days,
			updated_at = EXCLUDED.updated_at
	`, cfg.GuildID, cfg.ChannelID, cfg.Enabled, cfg.GracePeriodSeconds, cfg.ActionType, cfg.LogChannelID,
		cfg.EnableSmartDetection, cfg.MinAccountAgeDays, cfg.MinMembershipMinutes,
		cfg.MinMessageCount, cfg.RequireVerification, rolesJSON, usersJSON,
		cfg.DisableAdminWhitelist, cfg.BanReason, cfg.DeleteUserMessages, cfg.DeleteMessageDays,
		cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save bait config for guild %s: %w", cfg.GuildID, err)
	}

	d.logger.Debug("bait config saved", zap.String("guild_id", cfg.GuildID), zap.String("channel_id", cfg.ChannelID))
	return nil
}

// DeleteDetectionConfig removes a guild's configuration entirely.
func (d *Database) DeleteDetectionConfig(ctx context.Context, guildID string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM bait_channel_configs WHERE guild_id = $1", guildID); err != nil {
		return fmt.Errorf("delete bait config for guild %s: %w", guildID, err)
	}
	return nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}

func decodeIDs(raw string, dst *[]string) error {
	if raw == "" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
