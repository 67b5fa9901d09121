package scheduler

import (
	"fmt"

	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/utils"
)

// PrivateText is what the target reads in their direct channel.
func PrivateText(reminder model.Reminder) string {
	text := fmt.Sprintf("⏰ Reminder: %s", reminder.Task)
	if reminder.Requester != "" && !reminder.IsSelf() {
		text += fmt.Sprintf(" (from %s)", utils.Mention(reminder.Requester))
	}
	return text
}

func FallbackText(reminder model.Reminder) string {
	return fmt.Sprintf("⏰ Reminder for %s: %s", utils.Mention(reminder.Target), reminder.Task)
}
