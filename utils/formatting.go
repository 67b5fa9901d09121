package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// Slack only requires these three to be escaped in message text
var slackEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
)

func Escape(s string) string {
	return slackEscaper.Replace(s)
}

func Mention(identity string) string {
	var sb strings.Builder
	sb.WriteString("<@")
	sb.WriteString(identity)
	sb.WriteString(">")
	return sb.String()
}

func EmbedGUID(guid string) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString("(`")
	sb.WriteString(guid)
	sb.WriteString("`)")
	return sb.String()
}

func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ReminderTimeLayout)
}

// HumanizeLeadTime renders d as a compact string like "2h30m", dropping seconds
// once the duration reaches an hour.
func HumanizeLeadTime(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		d = d.Round(time.Minute)
	}
	return HumanizeDuration(duration.FromTimeDuration(d))
}

func HumanizeDuration(d *duration.Duration) string {
	var sb strings.Builder

	if d.Years > 0 {
		sb.WriteString(strconv.Itoa(int(d.Years)))
		sb.WriteString("y")
	}

	if d.Months > 0 {
		sb.WriteString(strconv.Itoa(int(d.Months)))
		sb.WriteString("M")
	}

	if d.Weeks > 0 {
		sb.WriteString(strconv.Itoa(int(d.Weeks)))
		sb.WriteString("w")
	}

	if d.Days > 0 {
		sb.WriteString(strconv.Itoa(int(d.Days)))
		sb.WriteString("d")
	}

	if d.Hours > 0 {
		sb.WriteString(strconv.Itoa(int(d.Hours)))
		sb.WriteString("h")
	}

	if d.Minutes > 0 {
		sb.WriteString(strconv.Itoa(int(d.Minutes)))
		sb.WriteString("m")
	}

	if d.Seconds > 0 {
		sb.WriteString(strconv.Itoa(int(d.Seconds)))
		sb.WriteString("s")
	}

	if sb.Len() == 0 {
		return "0s"
	}

	return sb.String()
}
