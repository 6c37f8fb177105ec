package bot

import (
	"context"
	"discord-baitchannel-bot/internal/baitchannel"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Platform implements baitchannel.Platform over a discordgo session.
type Platform struct {
	s *discordgo.Session
}

func NewPlatform(s *discordgo.Session) *Platform {
	return &Platform{s: s}
}

var _ baitchannel.Platform = (*Platform)(nil)

func (p *Platform) FetchMember(ctx context.Context, guildID, userID string) (*baitchannel.Member, error) {
	member, err := p.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}

	// State is disabled; roles and owner come from the guild object.
	guild, err := p.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}

	return buildMember(guild, member), nil
}

func (p *Platform) FetchMessage(ctx context.Context, channelID, messageID string) (*baitchannel.Message, error) {
	m, err := p.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, baitchannel.ErrMessageNotFound
		}
		return nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	return toMessage(m), nil
}

func (p *Platform) FetchChannel(ctx context.Context, channelID string) (string, error) {
	ch, err := p.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	return ch.Name, nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	if err := p.s.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ban %s: %w", userID, err)
	}
	return nil
}

func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := p.s.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("kick %s: %w", userID, err)
	}
	return nil
}

func (p *Platform) Reply(ctx context.Context, channelID, replyToID, content string, embed *discordgo.MessageEmbed) (string, error) {
	send := &discordgo.MessageSend{
		Content: content,
		Reference: &discordgo.MessageReference{
			MessageID: replyToID,
			ChannelID: channelID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}
	if embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}

	m, err := p.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("reply in %s: %w", channelID, err)
	}
	return m.ID, nil
}

func (p *Platform) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if _, err := p.s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send embed to %s: %w", channelID, err)
	}
	return nil
}

// buildMember resolves role names and computes administrator from the
// guild's role list. The @everyone role shares the guild's ID.
func buildMember(guild *discordgo.Guild, m *discordgo.Member) *baitchannel.Member {
	roles := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, r := range guild.Roles {
		roles[r.ID] = r
	}

	var perms int64
	if everyone, ok := roles[guild.ID]; ok {
		perms |= everyone.Permissions
	}

	out := &baitchannel.Member{
		JoinedAt: m.JoinedAt,
		IsOwner:  m.User != nil && m.User.ID == guild.OwnerID,
	}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = m.User.Username
		out.AccountCreated = accountCreated(m.User.ID)
	}

	for _, id := range m.Roles {
		r, ok := roles[id]
		if !ok {
			out.Roles = append(out.Roles, baitchannel.Role{ID: id})
			continue
		}
		perms |= r.Permissions
		out.Roles = append(out.Roles, baitchannel.Role{ID: r.ID, Name: r.Name, Permissions: r.Permissions})
	}

	out.IsAdministrator = out.IsOwner || perms&discordgo.PermissionAdministrator != 0
	return out
}

func toMessage(m *discordgo.Message) *baitchannel.Message {
	msg := &baitchannel.Message{
		ID:           m.ID,
		ChannelID:    m.ChannelID,
		GuildID:      m.GuildID,
		Content:      m.Content,
		WebhookID:    m.WebhookID,
		Timestamp:    m.Timestamp,
		MentionCount: len(m.Mentions) + len(m.MentionRoles),
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.AuthorBot = m.Author.Bot
		msg.AuthorCreated = accountCreated(m.Author.ID)
	}
	if m.Member != nil {
		msg.MemberJoinedAt = m.Member.JoinedAt
		msg.MemberRoleIDs = m.Member.Roles
	}
	return msg
}

func accountCreated(userID string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isNotFound matches HTTP 404 and Discord's Unknown Message code.
func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	return restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMessage
}
