package database

import (
	"context"
	"database/sql"
	"discord-baitchannel-bot/internal/models"
	"errors"
	"fmt"
)

// User Activity Operations

// GetActivity returns the activity record for a member, or nil if the
// member has never been seen.
func (d *Database) GetActivity(ctx context.Context, guildID, userID string) (*models.ActivityRecord, error) {
	rec := &models.ActivityRecord{GuildID: guildID, UserID: userID}
	err := d.db.QueryRowContext(ctx, `
		SELECT message_count, first_seen, last_seen, joined_at
		FROM bait_user_activity
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID).Scan(&rec.MessageCount, &rec.FirstSeen, &rec.LastSeen, &rec.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query activity for %s/%s: %w", guildID, userID, err)
	}
	return rec, nil
}

// RecordMessage counts one ordinary message. The first message inserts the
// record with count 1; later ones increment the count and move last_seen.
func (d *Database) RecordMessage(ctx context.Context, guildID, userID string, joinedAt, seenAt int64) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO bait_user_activity (guild_id, user_id, message_count, first_seen, last_seen, joined_at)
		VALUES ($1, $2, 1, $3, $3, $4)
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET
			message_count = bait_user_activity.message_count + 1,
			last_seen = EXCLUDED.last_seen,
			joined_at = CASE WHEN bait_user_activity.joined_at = 0 THEN EXCLUDED.joined_at ELSE bait_user_activity.joined_at END
	`, guildID, userID, seenAt, joinedAt)
	if err != nil {
		return fmt.Errorf("record message for %s/%s: %w", guildID, userID, err)
	}
	return nil
}
