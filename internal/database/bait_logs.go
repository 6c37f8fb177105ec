package database

import (
	"context"
	"database/sql"
	"discord-baitchannel-bot/internal/models"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Bait Log Operations

// InsertBaitLog appends one detection record. Entries are never updated.
func (d *Database) InsertBaitLog(ctx context.Context, e *models.BaitLogEntry) error {
	flags, err := json.Marshal(e.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	reasons := e.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = models.Now()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO bait_channel_logs (
			id, guild_id, user_id, username, channel_id, message_id, message_content,
			action, failure_reason, detection_reason, suspicion_score, flags, reasons,
			account_age_days, membership_minutes, message_count, has_verified_role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, e.ID, e.GuildID, e.UserID, e.Username, e.ChannelID, e.MessageID, models.TruncateContent(e.MessageContent),
		string(e.Action), e.FailureReason, e.DetectionReason, e.SuspicionScore, string(flags), string(reasonsJSON),
		e.AccountAgeDays, e.MembershipMinutes, e.MessageCount, e.HasVerifiedRole, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bait log %s: %w", e.ID, err)
	}
	return nil
}

// GetBaitLogs returns a guild's entries with from <= created_at < to,
// newest first. A zero to means "until now".
func (d *Database) GetBaitLogs(ctx context.Context, guildID string, from, to int64, limit int) ([]*models.BaitLogEntry, error) {
	if to == 0 {
		to = models.Now() + 1
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, username, channel_id, message_id, message_content,
			action, failure_reason, detection_reason, suspicion_score, flags, reasons,
			account_age_days, membership_minutes, message_count, has_verified_role, created_at
		FROM bait_channel_logs
		WHERE guild_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, guildID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query bait logs for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var entries []*models.BaitLogEntry
	for rows.Next() {
		e, err := scanBaitLog(rows)
		if err != nil {
			return nil, err
		}
		e.GuildID = guildID
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SummarizeBaitLogs aggregates a guild's entries over [from, to).
func (d *Database) SummarizeBaitLogs(ctx context.Context, guildID string, from, to int64) (*models.BaitLogSummary, error) {
	if to == 0 {
		to = models.Now() + 1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT action, suspicion_score, flags
		FROM bait_channel_logs
		WHERE guild_id = $1 AND created_at >= $2 AND created_at < $3
	`, guildID, from, to)
	if err != nil {
		return nil, fmt.Errorf("summarize bait logs for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	summary := &models.BaitLogSummary{
		GuildID:    guildID,
		ByAction:   make(map[models.BaitAction]int),
		FlagCounts: make(map[string]int),
		From:       from,
		To:         to,
	}

	var scoreSum int
	for rows.Next() {
		var action, flags string
		var score int
		if err := rows.Scan(&action, &score, &flags); err != nil {
			return nil, err
		}
		summary.Total++
		summary.ByAction[models.BaitAction(action)]++
		scoreSum += score

		// Flags are stored as a flat JSON object of booleans
		gjson.Parse(flags).ForEach(func(key, value gjson.Result) bool {
			if value.Bool() {
				summary.FlagCounts[key.String()]++
			}
			return true
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if summary.Total > 0 {
		summary.AverageScore = float64(scoreSum) / float64(summary.Total)
	}
	return summary, nil
}

func scanBaitLog(rows *sql.Rows) (*models.BaitLogEntry, error) {
	var e models.BaitLogEntry
	var action, flags, reasons string

	err := rows.Scan(
		&e.ID, &e.UserID, &e.Username, &e.ChannelID, &e.MessageID, &e.MessageContent,
		&action, &e.FailureReason, &e.DetectionReason, &e.SuspicionScore, &flags, &reasons,
		&e.AccountAgeDays, &e.MembershipMinutes, &e.MessageCount, &e.HasVerifiedRole, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Action = models.BaitAction(action)
	if err := json.Unmarshal([]byte(flags), &e.Flags); err != nil {
		return nil, fmt.Errorf("decode flags for log %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(reasons), &e.Reasons); err != nil {
		return nil, fmt.Errorf("decode reasons for log %s: %w", e.ID, err)
	}
	return &e, nil
}
