package platform

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/utils/httpUtils"
	"github.com/Brawl345/remindbot/utils/tgUtils"
	"github.com/PaulSonOfLars/gotgbot/v2"
)

// Telegram delivers through the Bot API. Identities and channels are numeric
// chat IDs; for users the private chat ID equals the user ID.
type Telegram struct {
	bot *gotgbot.Bot
}

func NewTelegram(token string) (*Telegram, error) {
	b, err := gotgbot.NewBot(token, &gotgbot.BotOpts{
		BotClient: &gotgbot.BaseBotClient{
			Client: *httpUtils.DefaultHttpClient,
			DefaultRequestOpts: &gotgbot.RequestOpts{
				Timeout: 15 * time.Second,
				APIURL:  gotgbot.DefaultAPIURL,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("username", b.Username).
		Int64("id", b.Id).
		Msg("Logged in to Telegram")

	return &Telegram{bot: b}, nil
}

func (t *Telegram) OpenDirectChannel(_ context.Context, identity string) (string, error) {
	chatID, err := tgUtils.ParseChatID(identity)
	if err != nil {
		return "", err
	}

	chat, err := t.bot.GetChat(chatID, nil)
	if err != nil {
		if tgUtils.IsUnreachable(err) {
			return "", fmt.Errorf("%w: %w", model.ErrChannelUnavailable, err)
		}
		return "", fmt.Errorf("getChat: %w", err)
	}
	if chat.Type != gotgbot.ChatTypePrivate {
		return "", fmt.Errorf("%w: chat %d is a %s", model.ErrChannelUnavailable, chatID, chat.Type)
	}
	return strconv.FormatInt(chat.Id, 10), nil
}

func (t *Telegram) PostMessage(_ context.Context, channel, text, threadRef string) error {
	chatID, err := tgUtils.ParseChatID(channel)
	if err != nil {
		return err
	}

	opts := &gotgbot.SendMessageOpts{
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
	}
	if threadRef != "" {
		messageID, err := strconv.ParseInt(threadRef, 10, 64)
		if err == nil {
			opts.ReplyParameters = &gotgbot.ReplyParameters{
				MessageId:                messageID,
				AllowSendingWithoutReply: true,
			}
		}
	}

	_, err = t.bot.SendMessage(chatID, tgUtils.Truncate(text), opts)
	if err != nil {
		if tgUtils.IsUnreachable(err) {
			return fmt.Errorf("%w: %w", model.ErrChannelUnavailable, err)
		}
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// LookupUser only succeeds for users with a private chat with the bot. Bots
// cannot talk to other bots, so every user found that way is human.
func (t *Telegram) LookupUser(_ context.Context, identity string) (model.User, error) {
	chatID, err := tgUtils.ParseChatID(identity)
	if err != nil {
		return model.User{}, err
	}

	chat, err := t.bot.GetChat(chatID, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("getChat: %w", err)
	}
	return model.User{
		ID:          strconv.FormatInt(chat.Id, 10),
		IsAutomated: chat.Type != gotgbot.ChatTypePrivate,
	}, nil
}

func (t *Telegram) ScheduleMessage(context.Context, string, string, time.Time) (string, error) {
	return "", model.ErrUnsupported
}

func (t *Telegram) DeleteScheduledMessage(context.Context, string, string) error {
	return model.ErrUnsupported
}
