package utils

const (
	// Emojis
	EmojiTick    = "<:tcet_tick:1437995479567962184>"
	EmojiCross   = "<:tcet_cross:1437995480754946178>"
	EmojiWarning = "⚠️"
	EmojiHammer  = "🔨"
	EmojiBoot    = "👢"
	EmojiNote    = "📝"
	EmojiShield  = "🛡️"
	EmojiTrash   = "🗑️"

	// Colors
	ColorDark   = 0x2f3136
	ColorGreen  = 0x00FF00
	ColorRed    = 0xFF0000
	ColorOrange = 0xFF8C00
	ColorYellow = 0xFFCC00
	ColorBlue   = 0x3498DB
)
