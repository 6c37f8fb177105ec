package utils

import (
	"discord-baitchannel-bot/internal/models"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaitLogEmbed_FailedVariantIsDistinct(t *testing.T) {
	failed := BaitLogEmbed(&models.BaitLogEntry{
		UserID:        "u1",
		Action:        models.BaitActionFailed,
		FailureReason: "Missing Permissions",
		CreatedAt:     models.Now(),
	})
	assert.Equal(t, ColorRed, failed.Color)
	assert.Contains(t, failed.Title, "Action Failed")

	var sawError bool
	for _, f := range failed.Fields {
		if f.Name == "Error" {
			sawError = true
			assert.Contains(t, f.Value, "Missing Permissions")
		}
	}
	assert.True(t, sawError)

	for _, action := range models.GetAllBaitActions() {
		if action == models.BaitActionFailed {
			continue
		}
		e := BaitLogEmbed(&models.BaitLogEntry{UserID: "u1", Action: action, CreatedAt: models.Now()})
		assert.NotEqual(t, ColorRed, e.Color, "action %s", action)
		assert.NotContains(t, e.Title, "Failed")
	}
}

func TestBaitWarningEmbed(t *testing.T) {
	e := BaitWarningEmbed("u1", 45, []string{"Account is 2 days old", "Contains 1 link(s)"}, 15)
	assert.Contains(t, e.Description, "<@u1>")
	assert.Contains(t, e.Description, "15 seconds")
	assert.Contains(t, e.Description, "45/100")
	assert.Contains(t, e.Description, "• Account is 2 days old")
}

func TestCodeBlockTruncates(t *testing.T) {
	v := codeBlock(strings.Repeat("a", 5000))
	assert.LessOrEqual(t, len(v), 1024)
	assert.True(t, strings.HasPrefix(v, "```"))
}
