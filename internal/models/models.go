package models

import "time"

// DetectionConfig is the per-guild bait channel configuration.
type DetectionConfig struct {
	GuildID              string `json:"guild_id"`
	ChannelID            string `json:"channel_id"`
	Enabled              bool   `json:"enabled"`
	GracePeriodSeconds   int    `json:"grace_period_seconds"` // 0 = instant
	ActionType           string `json:"action_type"`          // ban, kick, log-only
	LogChannelID         string `json:"log_channel_id"`
	EnableSmartDetection bool   `json:"enable_smart_detection"`

	// Thresholds
	MinAccountAgeDays    int  `json:"min_account_age_days"`
	MinMembershipMinutes int  `json:"min_membership_minutes"`
	MinMessageCount      int  `json:"min_message_count"`
	RequireVerification  bool `json:"require_verification"`

	// Whitelist
	WhitelistedRoles      []string `json:"whitelisted_roles"`
	WhitelistedUsers      []string `json:"whitelisted_users"`
	DisableAdminWhitelist bool     `json:"disable_admin_whitelist"`

	// Action details
	BanReason          string `json:"ban_reason"` // supports {reason} and {score}
	DeleteUserMessages bool   `json:"delete_user_messages"`
	DeleteMessageDays  int    `json:"delete_message_days"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// DefaultDetectionConfig returns the configuration a guild gets when the
// bait channel is first set up.
func DefaultDetectionConfig(guildID, channelID string) *DetectionConfig {
	return &DetectionConfig{
		GuildID:              guildID,
		ChannelID:            channelID,
		Enabled:              true,
		GracePeriodSeconds:   15,
		ActionType:           ActionTypeBan,
		EnableSmartDetection: true,
		MinAccountAgeDays:    7,
		MinMembershipMinutes: 5,
		MinMessageCount:      0,
		BanReason:            "Posted in bait channel: {reason}",
		DeleteUserMessages:   true,
		DeleteMessageDays:    1,
	}
}

// PurgeDays returns the number of days of messages to delete on ban,
// clamped to what Discord accepts.
func (c *DetectionConfig) PurgeDays() int {
	if !c.DeleteUserMessages {
		return 0
	}
	switch {
	case c.DeleteMessageDays < 0:
		return 0
	case c.DeleteMessageDays > 7:
		return 7
	}
	return c.DeleteMessageDays
}

// ActivityRecord tracks ordinary messages per user per guild.
type ActivityRecord struct {
	GuildID      string `json:"guild_id"`
	UserID       string `json:"user_id"`
	MessageCount int    `json:"message_count"`
	FirstSeen    int64  `json:"first_seen"`
	LastSeen     int64  `json:"last_seen"`
	JoinedAt     int64  `json:"joined_at"`
}

// SuspicionFlags records which scoring signals fired.
type SuspicionFlags struct {
	NewAccount  bool `json:"new_account"`
	NewMember   bool `json:"new_member"`
	LowActivity bool `json:"low_activity"`
	Unverified  bool `json:"unverified"`
	LinkSpam    bool `json:"link_spam"`
	MentionSpam bool `json:"mention_spam"`
	KeywordSpam bool `json:"keyword_spam"`
}

// BaitLogEntry is the append-only audit record of one detection event.
type BaitLogEntry struct {
	ID              string         `json:"id"`
	GuildID         string         `json:"guild_id"`
	UserID          string         `json:"user_id"`
	Username        string         `json:"username"`
	ChannelID       string         `json:"channel_id"`
	MessageID       string         `json:"message_id"`
	MessageContent  string         `json:"message_content"`
	Action          BaitAction     `json:"action"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	DetectionReason string         `json:"detection_reason"`
	SuspicionScore  int            `json:"suspicion_score"`
	Flags           SuspicionFlags `json:"flags"`
	Reasons         []string       `json:"reasons"`

	// Activity snapshot at decision time
	AccountAgeDays    int  `json:"account_age_days"`
	MembershipMinutes int  `json:"membership_minutes"`
	MessageCount      int  `json:"message_count"`
	HasVerifiedRole   bool `json:"has_verified_role"`

	CreatedAt int64 `json:"created_at"`
}

// BaitLogSummary aggregates log entries over a time range.
type BaitLogSummary struct {
	GuildID      string             `json:"guild_id"`
	Total        int                `json:"total"`
	ByAction     map[BaitAction]int `json:"by_action"`
	FlagCounts   map[string]int     `json:"flag_counts"`
	AverageScore float64            `json:"average_score"`
	From         int64              `json:"from"`
	To           int64              `json:"to"`
}

// MaxContentSnapshot is the longest message content stored in a log entry.
const MaxContentSnapshot = 1000

// TruncateContent cuts s to MaxContentSnapshot runes.
func TruncateContent(s string) string {
	r := []rune(s)
	if len(r) <= MaxContentSnapshot {
		return s
	}
	return string(r[:MaxContentSnapshot-1]) + "…"
}

// Helper to get current time in milliseconds
func Now() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// FromMillis converts a stored millisecond timestamp back to time.Time.
func FromMillis(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}
