package platform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/utils/httpUtils"
	"github.com/slack-go/slack"
)

// Slack error codes that mean the bot may not open a DM with the user.
var slackUnavailable = map[string]bool{
	"cannot_dm_bot":          true,
	"missing_scope":          true,
	"not_allowed_token_type": true,
	"user_disabled":          true,
	"user_not_found":         true,
}

type Slack struct {
	client *slack.Client
}

func NewSlack(token string) *Slack {
	return &Slack{
		client: slack.New(token, slack.OptionHTTPClient(httpUtils.DefaultHttpClient)),
	}
}

func (s *Slack) OpenDirectChannel(ctx context.Context, identity string) (string, error) {
	channel, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{identity},
	})
	if err != nil {
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) && slackUnavailable[slackErr.Err] {
			return "", fmt.Errorf("%w: %s", model.ErrChannelUnavailable, slackErr.Err)
		}
		return "", fmt.Errorf("conversations.open: %w", err)
	}
	return channel.ID, nil
}

func (s *Slack) PostMessage(ctx context.Context, channel, text, threadRef string) error {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadRef != "" {
		options = append(options, slack.MsgOptionTS(threadRef))
	}

	_, _, err := s.client.PostMessageContext(ctx, channel, options...)
	if err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

func (s *Slack) LookupUser(ctx context.Context, identity string) (model.User, error) {
	user, err := s.client.GetUserInfoContext(ctx, identity)
	if err != nil {
		return model.User{}, fmt.Errorf("users.info: %w", err)
	}
	return model.User{
		ID:          user.ID,
		IsAutomated: user.IsBot || user.IsAppUser,
	}, nil
}

func (s *Slack) ScheduleMessage(ctx context.Context, channel, text string, at time.Time) (string, error) {
	postAt := strconv.FormatInt(at.Unix(), 10)
	_, scheduledID, err := s.client.ScheduleMessageContext(ctx, channel, postAt, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("chat.scheduleMessage: %w", err)
	}
	return scheduledID, nil
}

func (s *Slack) DeleteScheduledMessage(ctx context.Context, channel, scheduledID string) error {
	_, err := s.client.DeleteScheduledMessageContext(ctx, &slack.DeleteScheduledMessageParameters{
		Channel:            channel,
		ScheduledMessageID: scheduledID,
	})
	if err != nil {
		return fmt.Errorf("chat.deleteScheduledMessage: %w", err)
	}
	return nil
}
