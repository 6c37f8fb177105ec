package baitchannel

import (
	"discord-baitchannel-bot/internal/models"
	"fmt"
	"strings"
	"time"
)

// InstantActionScore skips the grace period entirely.
const InstantActionScore = 90

const (
	maxAccountAgePoints = 30
	accountAgeDayPoints = 4
	newMemberPoints     = 25
	lowActivityPoints   = 20
	unverifiedPoints    = 15
	linkPoints          = 10
	maxLinkPoints       = 20
	mentionPoints       = 15
	mentionLimit        = 3
	keywordPoints       = 8
	maxKeywordPoints    = 25
	maxScore            = 100
)

// spamKeywords are matched case-insensitively as substrings, each at most once.
var spamKeywords = []string{
	"free nitro",
	"discord nitro",
	"steam gift",
	"gift card",
	"airdrop",
	"crypto",
	"bitcoin",
	"giveaway",
	"claim now",
	"click here",
	"dm me",
	"onlyfans",
	"investment",
	"@everyone",
}

// verificationMarkers identify a verified member by role name.
var verificationMarkers = []string{"verified", "member"}

// ScoreInput is everything the scorer looks at.
type ScoreInput struct {
	Content        string
	AccountCreated time.Time
	JoinedAt       time.Time // zero if unknown
	MessageCount   int
	RoleNames      []string
	MentionCount   int
	Now            time.Time
}

// SuspicionAnalysis is the scored result for one message.
type SuspicionAnalysis struct {
	Score   int
	Flags   models.SuspicionFlags
	Reasons []string

	AccountAgeDays    int
	MembershipMinutes int
	MessageCount      int
	HasVerifiedRole   bool
}

// Analyze scores a message. It is pure: identical inputs give identical output.
func Analyze(in ScoreInput, cfg *models.DetectionConfig) SuspicionAnalysis {
	a := SuspicionAnalysis{
		AccountAgeDays:    wholeDays(in.Now.Sub(in.AccountCreated)),
		MembershipMinutes: wholeMinutes(in.Now, in.JoinedAt),
		MessageCount:      in.MessageCount,
		HasVerifiedRole:   hasVerifiedRole(in.RoleNames),
	}
	score := 0

	if a.AccountAgeDays < cfg.MinAccountAgeDays {
		score += min(maxAccountAgePoints, (cfg.MinAccountAgeDays-a.AccountAgeDays)*accountAgeDayPoints)
		a.Flags.NewAccount = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("Account is %d day(s) old (minimum %d)", a.AccountAgeDays, cfg.MinAccountAgeDays))
	}

	if a.MembershipMinutes < cfg.MinMembershipMinutes {
		score += newMemberPoints
		a.Flags.NewMember = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("Joined %d minute(s) ago (minimum %d)", a.MembershipMinutes, cfg.MinMembershipMinutes))
	}

	if in.MessageCount < cfg.MinMessageCount {
		score += lowActivityPoints
		a.Flags.LowActivity = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("Only %d message(s) sent (minimum %d)", in.MessageCount, cfg.MinMessageCount))
	}

	if cfg.RequireVerification && !a.HasVerifiedRole {
		score += unverifiedPoints
		a.Flags.Unverified = true
		a.Reasons = append(a.Reasons, "No verified role")
	}

	if links := countLinks(in.Content); links > 0 {
		score += min(maxLinkPoints, links*linkPoints)
		a.Flags.LinkSpam = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("Contains %d link(s)", links))
	}

	if in.MentionCount > mentionLimit {
		score += mentionPoints
		a.Flags.MentionSpam = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("Mentions %d users/roles", in.MentionCount))
	}

	if matches := matchKeywords(in.Content); len(matches) > 0 {
		score += min(maxKeywordPoints, len(matches)*keywordPoints)
		a.Flags.KeywordSpam = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("Spam keywords: %s", strings.Join(matches, ", ")))
	}

	a.Score = min(score, maxScore)
	return a
}

func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Unknown join time counts as just joined.
func wholeMinutes(now, joined time.Time) int {
	if joined.IsZero() {
		return 0
	}
	d := now.Sub(joined)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

func hasVerifiedRole(roleNames []string) bool {
	for _, name := range roleNames {
		lower := strings.ToLower(name)
		for _, marker := range verificationMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func countLinks(content string) int {
	n := 0
	for _, token := range strings.Fields(content) {
		if isLink(strings.ToLower(token)) {
			n++
		}
	}
	return n
}

func isLink(token string) bool {
	return strings.HasPrefix(token, "http://") ||
		strings.HasPrefix(token, "https://") ||
		strings.HasPrefix(token, "www.") ||
		strings.Contains(token, "discord.gg/")
}

func matchKeywords(content string) []string {
	lower := strings.ToLower(content)
	var matches []string
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			matches = append(matches, kw)
		}
	}
	return matches
}
