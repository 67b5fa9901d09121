package timeUtils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/utils"
	"github.com/araddon/dateparse"
	"github.com/sosodev/duration"
)

const (
	maxAmount = 100000

	defaultDayHour     = 9
	defaultEveningHour = 20
)

var (
	log = logger.New("timeUtils")

	unitPattern = `(seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|wks?|w)`

	bareDurationRegex = regexp.MustCompile(`^\d+\s*` + unitPattern + `$`)
	componentRegex    = regexp.MustCompile(`\b(\d+\s*|(?:an?|one)\s+)` + unitPattern + `\b`)
	clockRegex        = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.?|p\.m\.?)?$`)
	isoDurationRegex  = regexp.MustCompile(`^(?:in\s+)?(p[0-9ymwdths.,]+)$`)
	dayRegex          = regexp.MustCompile(`^(?:on\s+)?(?:(this|next)\s+)?(today|tonight|tomorrow|tmrw|` + weekdayPattern + `)(?:\s+(?:at\s+)?(.+))?$`)
	trailingDayRegex  = regexp.MustCompile(`^(.+?)\s+(?:on\s+)?(?:(this|next)\s+)?(today|tonight|tomorrow|tmrw|` + weekdayPattern + `)$`)
	yearRegex         = regexp.MustCompile(`\b\d{4}\b`)

	weekdayPattern = `monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues|tue|wed|thurs|thur|thu|fri|sat|sun`
)

// Parse resolves a natural-language time phrase to an absolute instant in the
// future of now. Clock times ("9:30 pm") are resolved in loc on the current
// calendar day and roll over by one day when already past.
func Parse(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	text := normalize(raw)
	if text == "" {
		return time.Time{}, fmt.Errorf("%w: empty", model.ErrTimeUnparseable)
	}

	if bareDurationRegex.MatchString(text) {
		text = "in " + text
	}

	// The strict "H[:MM] [am|pm]" form takes precedence over every other grammar.
	if c, ok := readClock(text); ok {
		t := nextClock(now, loc, c)
		log.Debug().Str("raw", raw).Time("resolved", t).Msg("Parsed clock time")
		return t, nil
	}

	if d, ok := parseRelative(text); ok {
		return now.Add(d), nil
	}

	if d, ok := parseISODuration(text); ok {
		return now.Add(d), nil
	}

	if t, ok := parseDay(text, now, loc); ok {
		log.Debug().Str("raw", raw).Time("resolved", t).Msg("Parsed day expression")
		return t, nil
	}

	if t, ok := parseAbsolute(strings.TrimSpace(raw), now, loc); ok {
		log.Debug().Str("raw", raw).Time("resolved", t).Msg("Parsed absolute date")
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", model.ErrTimeUnparseable, raw)
}

func normalize(raw string) string {
	text := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	return strings.TrimRight(text, "!?,;.")
}

type clock struct {
	hour, minute int
	// ambiguous is set for hours like "9" or "9:30" that could mean either half of the day.
	ambiguous bool
}

func readClock(text string) (clock, bool) {
	switch text {
	case "noon", "12 noon", "midday":
		return clock{hour: 12}, true
	case "midnight", "12 midnight":
		return clock{hour: 0}, true
	case "morning":
		return clock{hour: 9}, true
	case "afternoon":
		return clock{hour: 15}, true
	case "evening":
		return clock{hour: 18}, true
	}

	m := clockRegex.FindStringSubmatch(text)
	if m == nil {
		return clock{}, false
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return clock{}, false
	}

	if m[3] == "" {
		if hour > 23 {
			return clock{}, false
		}
		return clock{
			hour:      hour,
			minute:    minute,
			ambiguous: hour >= 1 && hour <= 11 && !strings.HasPrefix(m[1], "0"),
		}, true
	}

	if hour < 1 || hour > 12 {
		return clock{}, false
	}
	pm := strings.HasPrefix(m[3], "p")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return clock{hour: hour, minute: minute}, true
}

// nextClock returns the first occurrence of the clock time in loc after now.
// Hours without am/pm that could be either morning or evening resolve to
// whichever comes first.
func nextClock(now time.Time, loc *time.Location, c clock) time.Time {
	first := onDay(now, loc, 0, c.hour, c.minute)
	if !first.After(now) {
		first = onDay(now, loc, 1, c.hour, c.minute)
	}
	if !c.ambiguous {
		return first
	}

	second := onDay(now, loc, 0, c.hour+12, c.minute)
	if !second.After(now) {
		second = onDay(now, loc, 1, c.hour+12, c.minute)
	}
	if second.Before(first) {
		return second
	}
	return first
}

func onDay(now time.Time, loc *time.Location, offset, hour, minute int) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+offset, hour, minute, 0, 0, loc)
}

func parseRelative(text string) (time.Duration, bool) {
	rest, found := strings.CutPrefix(text, "in ")
	if !found {
		return 0, false
	}

	matches := componentRegex.FindAllStringSubmatchIndex(rest, -1)
	if len(matches) == 0 {
		return 0, false
	}

	var total time.Duration
	pos := 0
	for _, m := range matches {
		if !isFiller(rest[pos:m[0]]) {
			return 0, false
		}

		amount := 1
		if n := strings.TrimSpace(rest[m[2]:m[3]]); n[0] >= '0' && n[0] <= '9' {
			amount, _ = strconv.Atoi(n)
		}
		if amount > maxAmount {
			return 0, false
		}

		total += time.Duration(amount) * unitDuration(rest[m[4]:m[5]])
		pos = m[1]
	}

	if strings.TrimSpace(rest[pos:]) != "" {
		return 0, false
	}
	return total, total > 0
}

func isFiller(s string) bool {
	s = strings.TrimSpace(strings.Trim(s, " ,"))
	return s == "" || s == "and"
}

func unitDuration(unit string) time.Duration {
	switch unit[0] {
	case 's':
		return time.Second
	case 'm':
		return time.Minute
	case 'h':
		return time.Hour
	case 'd':
		return utils.Day
	case 'w':
		return utils.Week
	}
	return time.Minute
}

// parseISODuration accepts ISO 8601 durations such as "PT90M" or "in P1DT2H".
func parseISODuration(text string) (time.Duration, bool) {
	m := isoDurationRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	d, err := duration.Parse(strings.ToUpper(m[1]))
	if err != nil {
		log.Debug().Err(err).Str("duration", m[1]).Msg("Not an ISO 8601 duration")
		return 0, false
	}
	if d.Negative {
		return 0, false
	}

	td := d.ToTimeDuration()
	return td, td > 0
}

// parseDay handles "tomorrow", "tonight at 8", "next friday 5pm", "5pm tomorrow".
func parseDay(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	var qualifier, day, clockText string
	if m := dayRegex.FindStringSubmatch(text); m != nil {
		qualifier, day, clockText = m[1], m[2], m[3]
	} else if m := trailingDayRegex.FindStringSubmatch(text); m != nil {
		clockText, qualifier, day = strings.TrimPrefix(m[1], "at "), m[2], m[3]
	} else {
		return time.Time{}, false
	}

	hour, minute := defaultDayHour, 0
	if day == "tonight" {
		hour = defaultEveningHour
	}
	if clockText != "" {
		c, ok := readClock(clockText)
		if !ok {
			return time.Time{}, false
		}
		hour, minute = c.hour, c.minute
		if day == "tonight" && c.ambiguous {
			hour += 12
		}
	}

	local := now.In(loc)
	switch day {
	case "today", "tonight":
		t := onDay(now, loc, 0, hour, minute)
		if !t.After(now) {
			t = onDay(now, loc, 1, hour, minute)
		}
		return t, true
	case "tomorrow", "tmrw":
		return onDay(now, loc, 1, hour, minute), true
	}

	weekday, ok := parseWeekday(day)
	if !ok {
		return time.Time{}, false
	}
	offset := (int(weekday) - int(local.Weekday()) + 7) % 7
	if offset == 0 && qualifier == "next" {
		offset = 7
	}
	t := onDay(now, loc, offset, hour, minute)
	if !t.After(now) {
		t = onDay(now, loc, offset+7, hour, minute)
	}
	return t, true
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch {
	case strings.HasPrefix(s, "sun"):
		return time.Sunday, true
	case strings.HasPrefix(s, "mon"):
		return time.Monday, true
	case strings.HasPrefix(s, "tue"):
		return time.Tuesday, true
	case strings.HasPrefix(s, "wed"):
		return time.Wednesday, true
	case strings.HasPrefix(s, "thu"):
		return time.Thursday, true
	case strings.HasPrefix(s, "fri"):
		return time.Friday, true
	case strings.HasPrefix(s, "sat"):
		return time.Saturday, true
	}
	return 0, false
}

// parseAbsolute falls back to dateparse for calendar dates. Dates without an
// explicit year that already passed are moved to next year.
func parseAbsolute(raw string, now time.Time, loc *time.Location) (time.Time, bool) {
	if !strings.ContainsAny(raw, "0123456789") {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		log.Debug().Err(err).Str("raw", raw).Msg("dateparse failed")
		return time.Time{}, false
	}

	hasYear := yearRegex.MatchString(raw)
	if t.Year() == 0 {
		t = time.Date(now.In(loc).Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
	if !t.After(now) && !hasYear {
		t = t.AddDate(1, 0, 0)
	}
	return t, true
}
