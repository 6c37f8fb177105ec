package baitchannel

import (
	"context"
	"discord-baitchannel-bot/internal/models"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrMessageNotFound is returned by Platform.FetchMessage when the message
// no longer exists.
var ErrMessageNotFound = errors.New("baitchannel: message not found")

// Message is the engine's view of a guild message.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Content   string
	WebhookID string
	Timestamp time.Time

	AuthorID      string
	AuthorName    string
	AuthorBot     bool
	AuthorCreated time.Time

	// Mentioned users plus mentioned roles
	MentionCount int

	// Member data carried by the gateway event, if any
	MemberJoinedAt time.Time
	MemberRoleIDs  []string
}

type Role struct {
	ID          string
	Name        string
	Permissions int64
}

// Member is a guild member with roles resolved.
type Member struct {
	UserID          string
	Username        string
	AccountCreated  time.Time
	JoinedAt        time.Time
	Roles           []Role
	IsOwner         bool
	IsAdministrator bool

	// Partial is set when the member was built from message data only.
	Partial bool
}

// RoleNames returns the names of the member's roles.
func (m *Member) RoleNames() []string {
	names := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		names = append(names, r.Name)
	}
	return names
}

// HasRole reports whether the member holds roleID.
func (m *Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// Platform is the chat platform API surface the engine needs.
type Platform interface {
	FetchMember(ctx context.Context, guildID, userID string) (*Member, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	FetchChannel(ctx context.Context, channelID string) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	// Reply posts a message referencing replyToID and returns the new message ID.
	Reply(ctx context.Context, channelID, replyToID, content string, embed *discordgo.MessageEmbed) (string, error)
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// ConfigSource is the cached read path for guild configuration.
type ConfigSource interface {
	Get(ctx context.Context, guildID string) (*models.DetectionConfig, error)
	Invalidate(guildID string)
}

type ConfigStore interface {
	SaveDetectionConfig(ctx context.Context, cfg *models.DetectionConfig) error
	DeleteDetectionConfig(ctx context.Context, guildID string) error
}

type ActivityStore interface {
	GetActivity(ctx context.Context, guildID, userID string) (*models.ActivityRecord, error)
	RecordMessage(ctx context.Context, guildID, userID string, joinedAt, seenAt int64) error
}

type AuditStore interface {
	InsertBaitLog(ctx context.Context, e *models.BaitLogEntry) error
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
