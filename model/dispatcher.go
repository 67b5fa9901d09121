package model

import (
	"context"
	"time"
)

type (
	// Dispatcher is the outbound side of the chat platform.
	Dispatcher interface {
		// OpenDirectChannel returns a handle to a one-to-one conversation with the user.
		// Implementations wrap ErrChannelUnavailable when the platform refuses.
		OpenDirectChannel(ctx context.Context, identity string) (string, error)
		PostMessage(ctx context.Context, channel, text, threadRef string) error
		LookupUser(ctx context.Context, identity string) (User, error)
		// ScheduleMessage asks the platform to send text at the given instant.
		// Returns ErrUnsupported if the platform cannot hold future sends.
		ScheduleMessage(ctx context.Context, channel, text string, at time.Time) (string, error)
		DeleteScheduledMessage(ctx context.Context, channel, scheduledID string) error
	}

	User struct {
		ID          string
		IsAutomated bool
	}
)
