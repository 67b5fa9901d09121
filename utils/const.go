package utils

import "time"

const (
	Day  = 24 * time.Hour
	Week = 7 * Day

	// Layout used whenever a reminder time is shown to a user.
	ReminderTimeLayout = "Mon Jan 2, 2006 3:04 PM MST"
)
