package platform

import (
	"context"
	"time"

	"github.com/Brawl345/remindbot/model"
	"golang.org/x/time/rate"
)

// Limited throttles the calls of a Dispatcher that create messages. Slack
// allows about one message per second and channel.
type Limited struct {
	model.Dispatcher
	limiter *rate.Limiter
}

func NewLimited(dispatcher model.Dispatcher, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		Dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *Limited) PostMessage(ctx context.Context, channel, text, threadRef string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.Dispatcher.PostMessage(ctx, channel, text, threadRef)
}

func (l *Limited) ScheduleMessage(ctx context.Context, channel, text string, at time.Time) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Dispatcher.ScheduleMessage(ctx, channel, text, at)
}
