package models

// Configured action types
const (
	ActionTypeBan     = "ban"
	ActionTypeKick    = "kick"
	ActionTypeLogOnly = "log-only"
)

// BaitAction is the outcome recorded in a bait log entry.
type BaitAction string

const (
	BaitActionBanned        BaitAction = "banned"
	BaitActionKicked        BaitAction = "kicked"
	BaitActionLogged        BaitAction = "logged"
	BaitActionWhitelisted   BaitAction = "whitelisted"
	BaitActionDeletedInTime BaitAction = "deleted-in-time"
	BaitActionFailed        BaitAction = "failed"
)

// GetAllBaitActions returns every outcome a log entry can carry
func GetAllBaitActions() []BaitAction {
	return []BaitAction{
		BaitActionBanned,
		BaitActionKicked,
		BaitActionLogged,
		BaitActionWhitelisted,
		BaitActionDeletedInTime,
		BaitActionFailed,
	}
}

// IsValidActionType reports whether t is a configurable action type
func IsValidActionType(t string) bool {
	switch t {
	case ActionTypeBan, ActionTypeKick, ActionTypeLogOnly:
		return true
	}
	return false
}

// ActionOutcome maps a configured action type to the outcome recorded on success
func ActionOutcome(actionType string) BaitAction {
	switch actionType {
	case ActionTypeBan:
		return BaitActionBanned
	case ActionTypeKick:
		return BaitActionKicked
	default:
		return BaitActionLogged
	}
}

// GetBaitActionDisplayName returns a human-readable name for an outcome
func GetBaitActionDisplayName(action BaitAction) string {
	switch action {
	case BaitActionBanned:
		return "Banned"
	case BaitActionKicked:
		return "Kicked"
	case BaitActionLogged:
		return "Logged Only"
	case BaitActionWhitelisted:
		return "Whitelisted"
	case BaitActionDeletedInTime:
		return "Deleted In Time"
	case BaitActionFailed:
		return "Action Failed"
	default:
		return string(action)
	}
}
