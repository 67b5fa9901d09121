package reminders

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Brawl345/remindbot/model"
)

type (
	UserLookup interface {
		LookupUser(ctx context.Context, identity string) (model.User, error)
	}

	// Parser extracts remind commands from mention text. The accepted forms are
	//
	//	[please] remind me [to] <task> at <time>
	//	[please] remind <@user> [to] <task> at <time>
	//
	// and, with Fallback set, any text ending in "at <time>" as a reminder for
	// the sender.
	Parser struct {
		Lookup UserLookup

		// AllowAutomatedSelf skips the automated-account check when the
		// mentioned user is the sender.
		AllowAutomatedSelf bool

		Fallback bool
	}

	addressing int
)

const (
	addressSelf addressing = iota
	addressMention
	addressFallback
)

const fallbackTaskPrefix = "Via mention: "

var (
	selfRegex    = regexp.MustCompile(`(?is)^(?:please\s+)?remind\s+me\b\s*(.*)$`)
	mentionRegex = regexp.MustCompile(`(?is)^(?:please\s+)?remind\s+<@([A-Za-z0-9._-]+)(?:\|[^>]*)?>\s*(.*)$`)

	// The greedy prefix makes the last " at " the boundary between task and time.
	splitRegex   = regexp.MustCompile(`(?is)^(.*\S)\s+at\s+(.*)$`)
	leadingRegex = regexp.MustCompile(`(?i)^(?:remind\s+)?(?:to\s+)?`)
)

func (p *Parser) Parse(ctx context.Context, text, sender, bot string) (*model.RemindCommand, error) {
	text = strings.TrimSpace(stripMention(text, bot))

	mode, target, rest, ok := p.match(text, sender)
	if !ok {
		return nil, fmt.Errorf("%w: no addressing form", model.ErrCommandNotRecognized)
	}

	m := splitRegex.FindStringSubmatch(rest)
	if m == nil {
		return nil, fmt.Errorf("%w: no time separator", model.ErrCommandNotRecognized)
	}

	task := strings.TrimSpace(leadingRegex.ReplaceAllString(strings.TrimSpace(m[1]), ""))
	rawTime := strings.TrimSpace(m[2])
	if mode == addressFallback {
		task = fallbackTaskPrefix + text
	}
	if task == "" || rawTime == "" {
		return nil, fmt.Errorf("%w: empty task or time", model.ErrCommandNotRecognized)
	}

	if mode == addressMention {
		if err := p.checkTarget(ctx, target, sender); err != nil {
			return nil, err
		}
	}

	return &model.RemindCommand{
		Requester: sender,
		Target:    target,
		Task:      task,
		RawTime:   rawTime,
	}, nil
}

func (p *Parser) match(text, sender string) (addressing, string, string, bool) {
	if m := selfRegex.FindStringSubmatch(text); m != nil {
		return addressSelf, sender, m[1], true
	}
	if m := mentionRegex.FindStringSubmatch(text); m != nil {
		return addressMention, m[1], m[2], true
	}
	if p.Fallback {
		return addressFallback, sender, text, true
	}
	return 0, "", "", false
}

func (p *Parser) checkTarget(ctx context.Context, target, sender string) error {
	if target == sender && p.AllowAutomatedSelf {
		return nil
	}
	if p.Lookup == nil {
		return nil
	}

	user, err := p.Lookup.LookupUser(ctx, target)
	if err != nil {
		log.Warn().
			Err(err).
			Str("target", target).
			Msg("Failed to look up mentioned user")
		return fmt.Errorf("%w: lookup failed: %w", model.ErrTargetRejected, err)
	}
	if user.IsAutomated {
		return fmt.Errorf("%w: %s is automated", model.ErrTargetRejected, target)
	}
	return nil
}

// stripMention removes every mention of the bot, including labelled ones like
// <@B1|remindbot>. Mentions of other users stay in place.
func stripMention(text, bot string) string {
	if bot == "" {
		return text
	}
	mention := regexp.MustCompile(`<@` + regexp.QuoteMeta(bot) + `(?:\|[^>]*)?>`)
	return mention.ReplaceAllString(text, "")
}
