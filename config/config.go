package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Brawl345/remindbot/scheduler"
)

type (
	Dispatcher string

	Config struct {
		Port          string
		Timezone      string
		MinLeadTime   time.Duration
		SweepInterval time.Duration
		DeliveryMode  scheduler.Mode

		Dispatcher       Dispatcher
		SlackBotToken    string
		TelegramBotToken string
		BotUserID        string

		AllowAutomatedSelf bool
		MentionFallback    bool

		FollowupKeywords []string
		FollowupDelay    time.Duration

		OutboundRate  float64
		OutboundBurst int

		MaxRemindersPerUser int
		PrintMessages       bool
	}
)

const (
	DispatcherSlack    Dispatcher = "slack"
	DispatcherTelegram Dispatcher = "telegram"
	DispatcherLog      Dispatcher = "log"
)

// Load reads the configuration from the environment. Every value has a
// default except the token of the selected dispatcher.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:             getenv("PORT", "10000"),
		Timezone:         getenv("TIMEZONE", "America/Moncton"),
		DeliveryMode:     scheduler.Mode(strings.ToLower(getenv("DELIVERY_MODE", string(scheduler.ModeTimer)))),
		Dispatcher:       Dispatcher(strings.ToLower(getenv("DISPATCHER", string(DispatcherSlack)))),
		SlackBotToken:    getenv("SLACK_BOT_TOKEN", ""),
		TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		BotUserID:        getenv("BOT_USER_ID", ""),
		FollowupKeywords: splitList(getenv("FOLLOWUP_KEYWORDS", "#followup,#urgent")),
	}

	cfg.MinLeadTime = parseDuration("MIN_LEAD_TIME", time.Minute, &errs)
	cfg.SweepInterval = parseDuration("SWEEP_INTERVAL", time.Minute, &errs)
	cfg.FollowupDelay = parseDuration("FOLLOWUP_DELAY", time.Hour, &errs)
	cfg.AllowAutomatedSelf = parseBool("ALLOW_AUTOMATED_SELF", true, &errs)
	cfg.MentionFallback = parseBool("MENTION_FALLBACK", false, &errs)
	cfg.OutboundRate = parseFloat("OUTBOUND_RATE", 1, &errs)
	cfg.OutboundBurst = parseInt("OUTBOUND_BURST", 5, &errs)
	cfg.MaxRemindersPerUser = parseInt("MAX_REMINDERS_PER_USER", 50, &errs)
	_, cfg.PrintMessages = os.LookupEnv("PRINT_MSGS")

	switch cfg.DeliveryMode {
	case scheduler.ModeTimer, scheduler.ModeSweep, scheduler.ModePlatform:
	default:
		errs = append(errs, fmt.Errorf("DELIVERY_MODE: unknown mode %q", cfg.DeliveryMode))
	}

	switch cfg.Dispatcher {
	case DispatcherSlack:
		if cfg.SlackBotToken == "" {
			errs = append(errs, errors.New("SLACK_BOT_TOKEN is required for the slack dispatcher"))
		}
	case DispatcherTelegram:
		if cfg.TelegramBotToken == "" {
			errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required for the telegram dispatcher"))
		}
	case DispatcherLog:
	default:
		errs = append(errs, fmt.Errorf("DISPATCHER: unknown dispatcher %q", cfg.Dispatcher))
	}

	if cfg.MinLeadTime < 0 {
		errs = append(errs, errors.New("MIN_LEAD_TIME must not be negative"))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if cfg.FollowupDelay < cfg.MinLeadTime {
		errs = append(errs, fmt.Errorf("FOLLOWUP_DELAY must be at least MIN_LEAD_TIME (%s)", cfg.MinLeadTime))
	}
	if cfg.OutboundRate <= 0 {
		errs = append(errs, errors.New("OUTBOUND_RATE must be positive"))
	}
	if cfg.MaxRemindersPerUser < 0 {
		errs = append(errs, errors.New("MAX_REMINDERS_PER_USER must not be negative"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := getenv(key, "")
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func parseBool(key string, fallback bool, errs *[]error) bool {
	value := getenv(key, "")
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func parseInt(key string, fallback int, errs *[]error) int {
	value := getenv(key, "")
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return i
}

func parseFloat(key string, fallback float64, errs *[]error) float64 {
	value := getenv(key, "")
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}
