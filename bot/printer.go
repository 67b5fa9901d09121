package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Brawl345/remindbot/model"
)

// https://twin.sh/articles/35/how-to-add-colors-to-your-console-terminal-output-in-go
var (
	reset  = "\033[0m"
	bold   = "\033[1m"
	italic = "\033[3m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
)

// eventTime turns a Slack-style "1760562000.000100" timestamp into a time.
func eventTime(ts string) (time.Time, bool) {
	seconds, _, _ := strings.Cut(ts, ".")
	unix, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil || unix == 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

func formatEvent(e model.Event) string {
	var sb strings.Builder

	// Time
	if t, ok := eventTime(e.TS); ok {
		sb.WriteString(
			fmt.Sprintf(
				"%s[%v]",
				cyan,
				t.Format("15:04:05"),
			),
		)
	}

	// Channel
	if e.Channel != "" {
		sb.WriteString(
			fmt.Sprintf(
				" %s#%s:",
				cyan,
				e.Channel,
			),
		)
	}

	sb.WriteString(reset)

	// Sender
	if e.User != "" {
		sb.WriteString(
			fmt.Sprintf(
				" %s%s%s%s",
				bold,
				red,
				e.User,
				reset,
			),
		)
	}

	// Begin message
	sb.WriteString(
		fmt.Sprintf(
			"%s >>> %s",
			cyan,
			reset,
		),
	)

	if e.Type != "message" {
		sb.WriteString(
			fmt.Sprintf(
				"%s(%s) %s",
				green,
				e.Type,
				reset,
			),
		)
	}

	if e.ThreadTS != "" {
		sb.WriteString(
			fmt.Sprintf(
				"%s(in thread) %s",
				italic,
				reset,
			),
		)
	}

	sb.WriteString(e.Text)

	return sb.String()
}

func PrintEvent(e model.Event) {
	println(formatEvent(e))
}
