package reminders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/plugin"
	"github.com/Brawl345/remindbot/scheduler"
	"github.com/Brawl345/remindbot/utils"
)

var log = logger.New("reminders")

const usage = "Usage:\n" +
	"• `set <time> <message>` - e.g. `set 5m stretch`, `set 17:30 standup`, `set tomorrow pay rent`\n" +
	"• `list` - show your upcoming reminders\n" +
	"• `delete <id>` - delete a reminder"

type (
	Plugin struct {
		reminderService Service
		parser          *Parser
		opts            Options
	}

	Service interface {
		Schedule(ctx context.Context, req scheduler.Request) (model.Reminder, error)
		Cancel(ctx context.Context, id, identity string) (model.Reminder, error)
		List(identity string) []model.Reminder
		Now() time.Time
		Location() *time.Location
	}

	Options struct {
		FollowupKeywords []string
		FollowupDelay    time.Duration
		MinLeadTime      time.Duration
	}
)

func New(service Service, parser *Parser, opts Options) *Plugin {
	return &Plugin{
		reminderService: service,
		parser:          parser,
		opts:            opts,
	}
}

func (p *Plugin) Name() string {
	return "reminders"
}

func (p *Plugin) Handlers(string) []plugin.Handler {
	handlers := []plugin.Handler{
		&plugin.MentionHandler{
			Trigger:     regexp.MustCompile(`(?is)\sat\s`),
			HandlerFunc: p.onMention,
		},
		&plugin.CommandHandler{
			Trigger:     regexp.MustCompile(`(?is)^set\s+(?P<timespec>\S+)\s+(?P<message>.*\S.*)$`),
			HandlerFunc: p.onSet,
		},
		&plugin.CommandHandler{
			Trigger:     regexp.MustCompile(`(?i)^set(?:\s+\S+)?\s*$`),
			HandlerFunc: p.onSetWithoutMessage,
		},
		&plugin.CommandHandler{
			Trigger:     regexp.MustCompile(`(?i)^list$`),
			HandlerFunc: p.onList,
		},
		&plugin.CommandHandler{
			Trigger:     regexp.MustCompile(`(?i)^delete\s+(?P<id>\S+)$`),
			HandlerFunc: p.onDelete,
		},
		&plugin.CommandHandler{
			Trigger:     regexp.MustCompile(`(?s).*`),
			HandlerFunc: p.onUsage,
		},
	}

	if trigger := keywordTrigger(p.opts.FollowupKeywords); trigger != nil {
		handlers = append(handlers, &plugin.MessageHandler{
			Trigger:     trigger,
			HandlerFunc: p.onFollowup,
		})
	}

	return handlers
}

func keywordTrigger(keywords []string) *regexp.Regexp {
	quoted := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			quoted = append(quoted, regexp.QuoteMeta(keyword))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// isRejection reports errors that end processing without anyone being told.
func isRejection(err error) bool {
	return errors.Is(err, model.ErrCommandNotRecognized) ||
		errors.Is(err, model.ErrTargetRejected) ||
		errors.Is(err, model.ErrTimeUnparseable) ||
		errors.Is(err, model.ErrTooSoon) ||
		errors.Is(err, model.ErrLimitReached)
}

func (p *Plugin) onMention(ctx context.Context, c plugin.Context) error {
	e := c.Event

	cmd, err := p.parser.Parse(ctx, e.Text, e.User, e.BotUserID)
	if err != nil {
		log.Debug().
			Err(err).
			Str("user", e.User).
			Str("channel", e.Channel).
			Msg("Ignoring mention")
		return nil
	}

	_, err = p.reminderService.Schedule(ctx, scheduler.Request{
		Command:     *cmd,
		Origin:      model.Origin{Channel: e.Channel, ThreadRef: e.ThreadRef()},
		Acknowledge: p.acknowledgeMention,
	})
	if isRejection(err) {
		log.Debug().
			Err(err).
			Str("user", e.User).
			Str("raw_time", cmd.RawTime).
			Msg("Mention rejected")
		return nil
	}
	return err
}

func (p *Plugin) acknowledgeMention(reminder model.Reminder) string {
	return fmt.Sprintf("I will do it. ⏰ %s (in %s)",
		utils.FormatTime(reminder.FireAt, p.reminderService.Location()),
		utils.HumanizeLeadTime(reminder.FireAt.Sub(reminder.CreatedAt)),
	)
}

func (p *Plugin) onFollowup(ctx context.Context, c plugin.Context) error {
	e := c.Event
	delay := p.opts.FollowupDelay

	_, err := p.reminderService.Schedule(ctx, scheduler.Request{
		Command: model.RemindCommand{
			Requester: e.User,
			Target:    e.User,
			Task:      e.Text,
		},
		Origin: model.Origin{Channel: e.Channel},
		FireAt: p.reminderService.Now().Add(delay),
		Acknowledge: func(model.Reminder) string {
			return fmt.Sprintf("🔔 Noted—reminding in %s.", utils.HumanizeLeadTime(delay))
		},
	})
	if isRejection(err) {
		log.Debug().
			Err(err).
			Str("user", e.User).
			Msg("Follow-up rejected")
		return nil
	}
	return err
}

func (p *Plugin) onSet(ctx context.Context, c plugin.Context) (string, error) {
	timespec := c.NamedMatches["timespec"]
	message := strings.TrimSpace(c.NamedMatches["message"])

	_, err := p.reminderService.Schedule(ctx, scheduler.Request{
		Command: model.RemindCommand{
			Requester: c.Event.User,
			Target:    c.Event.User,
			Task:      message,
			RawTime:   timespec,
		},
		Origin: model.Origin{Channel: c.Event.Channel},
	})
	switch {
	case errors.Is(err, model.ErrTimeUnparseable):
		return fmt.Sprintf("❌ I don't understand the time “%s”.", timespec), nil
	case errors.Is(err, model.ErrTooSoon):
		return fmt.Sprintf("❌ That's too soon. Reminders need at least %s of lead time.",
			utils.HumanizeLeadTime(p.opts.MinLeadTime)), nil
	case errors.Is(err, model.ErrLimitReached):
		return "❌ You have too many pending reminders. Delete some first.", nil
	case err != nil:
		return "", err
	}

	return fmt.Sprintf("✅ Reminder set for %s: “%s”", timespec, message), nil
}

func (p *Plugin) onSetWithoutMessage(context.Context, plugin.Context) (string, error) {
	return "❌ Please add a message: `set <time> <message>`", nil
}

func (p *Plugin) onList(_ context.Context, c plugin.Context) (string, error) {
	reminders := p.reminderService.List(c.Event.User)
	if len(reminders) == 0 {
		return "No upcoming reminders.", nil
	}

	var sb strings.Builder
	for i, reminder := range reminders {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(
			fmt.Sprintf("• [%s] %s at %s",
				reminder.ID,
				reminder.Task,
				utils.FormatTime(reminder.FireAt, p.reminderService.Location()),
			),
		)
	}
	return sb.String(), nil
}

func (p *Plugin) onDelete(ctx context.Context, c plugin.Context) (string, error) {
	id := c.NamedMatches["id"]

	_, err := p.reminderService.Cancel(ctx, id, c.Event.User)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Sprintf("❌ Reminder %s not found.", id), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🗑️ Deleted reminder %s.", id), nil
}

func (p *Plugin) onUsage(context.Context, plugin.Context) (string, error) {
	return usage, nil
}
