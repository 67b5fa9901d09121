package plugin

import (
	"context"
	"regexp"

	"github.com/Brawl345/remindbot/model"
)

type (
	Plugin interface {
		Name() string

		// Handlers are used to react to specific strings in events and commands
		Handlers(botID string) []Handler
	}

	Handler interface {
		Command() *regexp.Regexp
	}

	Context struct {
		Event        model.Event
		Matches      []string          // Regex matches
		NamedMatches map[string]string // Named Regex matches
	}

	HandlerFunc func(ctx context.Context, c Context) error
	ReplyFunc   func(ctx context.Context, c Context) (string, error)

	// MentionHandler runs for events addressing the bot.
	MentionHandler struct {
		Trigger     *regexp.Regexp
		HandlerFunc HandlerFunc
	}

	// MessageHandler runs for plain channel messages written by humans.
	MessageHandler struct {
		Trigger     *regexp.Regexp
		HandlerFunc HandlerFunc
	}

	// CommandHandler answers slash commands. The reply is returned to the
	// caller synchronously.
	CommandHandler struct {
		Trigger     *regexp.Regexp
		HandlerFunc ReplyFunc
	}
)

func (h *MentionHandler) Command() *regexp.Regexp {
	return h.Trigger
}

func (h *MentionHandler) Run(ctx context.Context, c Context) error {
	return h.HandlerFunc(ctx, c)
}

func (h *MessageHandler) Command() *regexp.Regexp {
	return h.Trigger
}

func (h *MessageHandler) Run(ctx context.Context, c Context) error {
	return h.HandlerFunc(ctx, c)
}

func (h *CommandHandler) Command() *regexp.Regexp {
	return h.Trigger
}

func (h *CommandHandler) Run(ctx context.Context, c Context) (string, error) {
	return h.HandlerFunc(ctx, c)
}

// Match runs the trigger against text. A nil trigger matches everything.
func Match(trigger *regexp.Regexp, text string) ([]string, map[string]string, bool) {
	namedMatches := make(map[string]string)
	if trigger == nil {
		return []string{text}, namedMatches, true
	}

	matches := trigger.FindStringSubmatch(text)
	if matches == nil {
		return nil, nil, false
	}
	for i, name := range trigger.SubexpNames() {
		if name != "" {
			namedMatches[name] = matches[i]
		}
	}
	return matches, namedMatches, true
}
