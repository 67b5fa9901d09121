package model

type (
	// Event is an inbound chat event after it left the webhook envelope.
	Event struct {
		ID       string
		Type     string
		Text     string
		User     string
		Channel  string
		TS       string
		ThreadTS string
		BotID    string

		// BotUserID is the identity the bot is addressed by.
		BotUserID string
	}

	SlashCommand struct {
		Text    string
		User    string
		Channel string
	}
)

// ThreadRef is the thread replies should go to. Top-level messages start a
// new thread under themselves.
func (e Event) ThreadRef() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}
