package tgUtils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

// ParseChatID turns an identity or channel handle into a Telegram chat ID.
func ParseChatID(identity string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(identity), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", identity, err)
	}
	return id, nil
}

// IsUnreachable reports whether Telegram refused to talk to the user at all,
// as opposed to a transient failure.
func IsUnreachable(err error) bool {
	var telegramErr *gotgbot.TelegramError
	if !errors.As(err, &telegramErr) {
		return false
	}
	switch telegramErr.Description {
	case ErrBlockedByUser, ErrNotStartedByUser, ErrUserIsDeactivated, ErrChatNotFound:
		return true
	}
	return false
}

// Truncate cuts text to the maximum message length Telegram accepts.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return text
	}
	return string(runes[:MaxMessageLength-1]) + "…"
}
