package platform

import (
	"context"
	"time"

	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/rs/xid"
)

var log = logger.New("platform")

// Log writes every outbound message to the log instead of a chat platform.
// Useful for local runs without credentials.
type Log struct{}

func (Log) OpenDirectChannel(_ context.Context, identity string) (string, error) {
	return "dm-" + identity, nil
}

func (Log) PostMessage(_ context.Context, channel, text, threadRef string) error {
	log.Info().
		Str("channel", channel).
		Str("thread", threadRef).
		Str("text", text).
		Msg("Message")
	return nil
}

func (Log) LookupUser(_ context.Context, identity string) (model.User, error) {
	return model.User{ID: identity}, nil
}

func (Log) ScheduleMessage(_ context.Context, channel, text string, at time.Time) (string, error) {
	scheduledID := xid.New().String()
	log.Info().
		Str("channel", channel).
		Str("scheduled_id", scheduledID).
		Time("at", at).
		Str("text", text).
		Msg("Scheduled message")
	return scheduledID, nil
}

func (Log) DeleteScheduledMessage(_ context.Context, channel, scheduledID string) error {
	log.Info().
		Str("channel", channel).
		Str("scheduled_id", scheduledID).
		Msg("Deleted scheduled message")
	return nil
}
