package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/plugin"
	"github.com/Brawl345/remindbot/utils"
	"github.com/benbjohnson/clock"
	"github.com/rs/xid"
)

var log = logger.New("bot")

// Platforms retry deliveries they consider unacknowledged with the same event ID.
const dedupWindow = 10 * time.Minute

type (
	Envelope struct {
		Type           string          `json:"type"`
		Challenge      string          `json:"challenge,omitempty"`
		EventID        string          `json:"event_id,omitempty"`
		Authorizations []Authorization `json:"authorizations,omitempty"`
		Event          *EventPayload   `json:"event,omitempty"`
	}

	Authorization struct {
		UserID string `json:"user_id"`
	}

	EventPayload struct {
		Type     string `json:"type"`
		Subtype  string `json:"subtype,omitempty"`
		Text     string `json:"text"`
		User     string `json:"user"`
		Channel  string `json:"channel"`
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts,omitempty"`
		BotID    string `json:"bot_id,omitempty"`
	}

	Processor struct {
		plugins       []plugin.Plugin
		botID         string
		clock         clock.Clock
		printMessages bool

		mu   sync.Mutex
		seen map[string]time.Time

		wg sync.WaitGroup
	}
)

func NewProcessor(botID string, clk clock.Clock, plugins ...plugin.Plugin) *Processor {
	return &Processor{
		plugins: plugins,
		botID:   botID,
		clock:   clk,
		seen:    make(map[string]time.Time),
	}
}

// PrintMessages writes every inbound event to stdout.
func (p *Processor) PrintMessages(enabled bool) {
	p.printMessages = enabled
}

// ProcessEvent hands an event_callback envelope to the plugins. It never
// blocks on the handlers and never fails: the webhook must be acknowledged
// no matter what happens afterwards.
func (p *Processor) ProcessEvent(ctx context.Context, env *Envelope) {
	if env.Event == nil {
		log.Debug().Str("event_id", env.EventID).Msg("Envelope without event")
		return
	}

	if env.EventID != "" && p.isDuplicate(env.EventID) {
		log.Debug().Str("event_id", env.EventID).Msg("Skipping retried event")
		return
	}

	e := model.Event{
		ID:        env.EventID,
		Type:      env.Event.Type,
		Text:      env.Event.Text,
		User:      env.Event.User,
		Channel:   env.Event.Channel,
		TS:        env.Event.TS,
		ThreadTS:  env.Event.ThreadTS,
		BotID:     env.Event.BotID,
		BotUserID: p.botID,
	}
	if len(env.Authorizations) > 0 && env.Authorizations[0].UserID != "" {
		e.BotUserID = env.Authorizations[0].UserID
	}

	if p.printMessages {
		PrintEvent(e)
	}

	// Handlers outlive the request
	ctx = context.WithoutCancel(ctx)

	switch e.Type {
	case "mention", "app_mention":
		p.dispatch(ctx, e, func(h plugin.Handler) (runner, bool) {
			handler, ok := h.(*plugin.MentionHandler)
			return handler, ok
		})
	case "message":
		if e.BotID != "" || env.Event.Subtype != "" {
			return
		}
		// Mentions arrive a second time as their own event
		if e.BotUserID != "" && strings.Contains(e.Text, "<@"+e.BotUserID) {
			return
		}
		p.dispatch(ctx, e, func(h plugin.Handler) (runner, bool) {
			handler, ok := h.(*plugin.MessageHandler)
			return handler, ok
		})
	default:
		log.Debug().Str("type", e.Type).Msg("Unhandled event type")
	}
}

type runner interface {
	Command() *regexp.Regexp
	Run(ctx context.Context, c plugin.Context) error
}

func (p *Processor) dispatch(ctx context.Context, e model.Event, pick func(plugin.Handler) (runner, bool)) {
	for _, plg := range p.plugins {
		for _, h := range plg.Handlers(e.BotUserID) {
			handler, ok := pick(h)
			if !ok {
				continue
			}

			matches, namedMatches, matched := plugin.Match(handler.Command(), e.Text)
			if !matched {
				continue
			}

			log.Debug().
				Str("plugin", plg.Name()).
				Str("trigger", handler.Command().String()).
				Msg("Matched plugin")

			p.wg.Add(1)
			go func(name string) {
				defer p.wg.Done()
				defer func() {
					if r := recover(); r != nil {
						guid := xid.New().String()
						log.Err(errors.New("panic")).
							Str("guid", guid).
							Str("event_id", e.ID).
							Str("user", e.User).
							Str("channel", e.Channel).
							Str("text", e.Text).
							Str("plugin", name).
							Msgf("%s", r)
					}
				}()

				err := handler.Run(ctx, plugin.Context{
					Event:        e,
					Matches:      matches,
					NamedMatches: namedMatches,
				})
				if err != nil {
					guid := xid.New().String()
					log.Err(err).
						Str("guid", guid).
						Str("event_id", e.ID).
						Str("user", e.User).
						Str("channel", e.Channel).
						Str("text", e.Text).
						Str("plugin", name).
						Send()
				}
			}(plg.Name())
		}
	}
}

// ProcessCommand answers a slash command with the first matching handler.
func (p *Processor) ProcessCommand(ctx context.Context, cmd model.SlashCommand) string {
	text := strings.TrimSpace(cmd.Text)
	e := model.Event{
		Type:      "command",
		Text:      text,
		User:      cmd.User,
		Channel:   cmd.Channel,
		BotUserID: p.botID,
	}

	for _, plg := range p.plugins {
		for _, h := range plg.Handlers(p.botID) {
			handler, ok := h.(*plugin.CommandHandler)
			if !ok {
				continue
			}

			matches, namedMatches, matched := plugin.Match(handler.Command(), text)
			if !matched {
				continue
			}

			reply, err := handler.Run(ctx, plugin.Context{
				Event:        e,
				Matches:      matches,
				NamedMatches: namedMatches,
			})
			if err != nil {
				guid := xid.New().String()
				log.Err(err).
					Str("guid", guid).
					Str("user", cmd.User).
					Str("channel", cmd.Channel).
					Str("text", text).
					Str("plugin", plg.Name()).
					Send()
				return fmt.Sprintf("❌ Something went wrong.%s", utils.EmbedGUID(guid))
			}
			return reply
		}
	}

	return "❌ Unknown command."
}

// Wait blocks until all running handlers have returned.
func (p *Processor) Wait() {
	p.wg.Wait()
}

func (p *Processor) isDuplicate(eventID string) bool {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, seenAt := range p.seen {
		if now.Sub(seenAt) > dedupWindow {
			delete(p.seen, id)
		}
	}

	if _, exists := p.seen[eventID]; exists {
		return true
	}
	p.seen[eventID] = now
	return false
}
