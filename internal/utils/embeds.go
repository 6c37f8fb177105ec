package utils

import (
	"discord-baitchannel-bot/internal/models"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// BaitWarningEmbed is attached to the reply sent when a grace period starts.
func BaitWarningEmbed(userID string, score int, reasons []string, graceSeconds int) *discordgo.MessageEmbed {
	description := fmt.Sprintf("<@%s>, this channel is a trap for automated accounts.\n"+
		"Delete your message within **%d seconds** or action will be taken.\n\n"+
		"**Suspicion Score:** %d/100",
		userID, graceSeconds, score)

	if len(reasons) > 0 {
		description += "\n\n**Reasons:**\n" + bulletList(reasons)
	}

	return &discordgo.MessageEmbed{
		Title:       EmojiWarning + " Bait Channel Warning",
		Description: description,
		Color:       ColorYellow,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Expires in %ds", graceSeconds),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// BaitLogEmbed renders a log entry for the guild's log channel. Failed
// actions get their own red variant.
func BaitLogEmbed(e *models.BaitLogEntry) *discordgo.MessageEmbed {
	if e.Action == models.BaitActionFailed {
		return baitFailedEmbed(e)
	}

	title, color := baitActionStyle(e.Action)

	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", e.UserID, e.Username), Inline: true},
		{Name: "Action", Value: models.GetBaitActionDisplayName(e.Action), Inline: true},
		{Name: "Score", Value: fmt.Sprintf("%d/100", e.SuspicionScore), Inline: true},
		{Name: "Channel", Value: fmt.Sprintf("<#%s>", e.ChannelID), Inline: true},
		{Name: "Account Age", Value: fmt.Sprintf("%d days", e.AccountAgeDays), Inline: true},
		{Name: "Membership", Value: fmt.Sprintf("%d minutes", e.MembershipMinutes), Inline: true},
		{Name: "Detection", Value: orDash(e.DetectionReason), Inline: false},
	}

	if len(e.Reasons) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Signals", Value: bulletList(e.Reasons), Inline: false})
	}
	if e.MessageContent != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Message", Value: codeBlock(e.MessageContent), Inline: false})
	}

	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("User ID: %s", e.UserID)},
		Timestamp: models.FromMillis(e.CreatedAt).Format(time.RFC3339),
	}
}

func baitFailedEmbed(e *models.BaitLogEntry) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", e.UserID, e.Username), Inline: true},
		{Name: "Score", Value: fmt.Sprintf("%d/100", e.SuspicionScore), Inline: true},
		{Name: "Detection", Value: orDash(e.DetectionReason), Inline: false},
		{Name: "Error", Value: codeBlock(orDash(e.FailureReason)), Inline: false},
	}

	return &discordgo.MessageEmbed{
		Title:       EmojiCross + " Bait Channel Action Failed",
		Description: "The configured action could not be applied. Check the bot's role position and permissions.",
		Color:       ColorRed,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("User ID: %s", e.UserID)},
		Timestamp:   models.FromMillis(e.CreatedAt).Format(time.RFC3339),
	}
}

func baitActionStyle(action models.BaitAction) (string, int) {
	switch action {
	case models.BaitActionBanned:
		return EmojiHammer + " Bait Channel: User Banned", ColorOrange
	case models.BaitActionKicked:
		return EmojiBoot + " Bait Channel: User Kicked", ColorYellow
	case models.BaitActionLogged:
		return EmojiNote + " Bait Channel: Message Logged", ColorBlue
	case models.BaitActionWhitelisted:
		return EmojiShield + " Bait Channel: Whitelisted User", ColorDark
	case models.BaitActionDeletedInTime:
		return EmojiTrash + " Bait Channel: Deleted In Time", ColorGreen
	default:
		return "Bait Channel", ColorDark
	}
}

func bulletList(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("• ")
		sb.WriteString(item)
	}
	return truncate(sb.String(), 1024)
}

// codeBlock wraps s for an embed field value (max 1024 chars).
func codeBlock(s string) string {
	s = strings.ReplaceAll(s, "```", "'''")
	return "```" + truncate(s, 1000) + "```"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
