package baitchannel

import (
	"discord-baitchannel-bot/internal/models"
	"slices"
)

// WhitelistResult explains why a member is exempt, if they are.
type WhitelistResult struct {
	Whitelisted bool
	Reason      string
	RoleID      string // set for role matches
}

type whitelistRule struct {
	name  string
	match func(m *Member, cfg *models.DetectionConfig) (WhitelistResult, bool)
}

// Checked in order; first match wins. The owner rule ignores every config
// toggle.
var whitelistRules = []whitelistRule{
	{
		name: "owner",
		match: func(m *Member, _ *models.DetectionConfig) (WhitelistResult, bool) {
			return WhitelistResult{Whitelisted: true, Reason: "owner"}, m.IsOwner
		},
	},
	{
		name: "user",
		match: func(m *Member, cfg *models.DetectionConfig) (WhitelistResult, bool) {
			return WhitelistResult{Whitelisted: true, Reason: "whitelisted user"}, slices.Contains(cfg.WhitelistedUsers, m.UserID)
		},
	},
	{
		name: "role",
		match: func(m *Member, cfg *models.DetectionConfig) (WhitelistResult, bool) {
			for _, roleID := range cfg.WhitelistedRoles {
				if m.HasRole(roleID) {
					return WhitelistResult{Whitelisted: true, Reason: "whitelisted role " + roleID, RoleID: roleID}, true
				}
			}
			return WhitelistResult{}, false
		},
	},
	{
		name: "administrator",
		match: func(m *Member, cfg *models.DetectionConfig) (WhitelistResult, bool) {
			return WhitelistResult{Whitelisted: true, Reason: "administrator"}, m.IsAdministrator && !cfg.DisableAdminWhitelist
		},
	},
}

// CheckWhitelist resolves whether m is exempt from detection.
func CheckWhitelist(m *Member, cfg *models.DetectionConfig) WhitelistResult {
	for _, rule := range whitelistRules {
		if res, ok := rule.match(m, cfg); ok {
			return res
		}
	}
	return WhitelistResult{}
}
