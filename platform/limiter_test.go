package platform

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Brawl345/remindbot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDispatcher struct {
	Log
	mu    sync.Mutex
	posts int
}

func (c *countingDispatcher) PostMessage(context.Context, string, string, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts++
	return nil
}

func TestLimitedPassesBurstThrough(t *testing.T) {
	inner := &countingDispatcher{}
	limited := NewLimited(inner, 1, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, limited.PostMessage(context.Background(), "C1", "hi", ""))
	}
	assert.Equal(t, 3, inner.posts)
}

func TestLimitedWaitsBeyondBurst(t *testing.T) {
	inner := &countingDispatcher{}
	limited := NewLimited(inner, 0.01, 1)

	require.NoError(t, limited.PostMessage(context.Background(), "C1", "first", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limited.PostMessage(ctx, "C1", "second", "")

	assert.Error(t, err)
	assert.Equal(t, 1, inner.posts)
}

func TestLimitedKeepsOtherCapabilities(t *testing.T) {
	var dispatcher model.Dispatcher = NewLimited(Log{}, 10, 1)

	channel, err := dispatcher.OpenDirectChannel(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "dm-U1", channel)

	user, err := dispatcher.LookupUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, user.IsAutomated)
}
