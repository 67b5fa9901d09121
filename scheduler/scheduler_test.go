package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/storage"
	"github.com/Brawl345/remindbot/utils"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	atlantic = time.FixedZone("ADT", -3*60*60)
	base     = time.Date(2026, time.October, 15, 18, 0, 0, 0, atlantic)
)

type post struct {
	channel, text, threadRef string
}

type fakeDispatcher struct {
	mu          sync.Mutex
	posts       []post
	attempts    int
	scheduled   map[string]post
	deleted     []string
	dmErr       error
	postErr     error
	scheduleErr error

	// PostMessage with holdText blocks until hold is closed.
	hold     chan struct{}
	holdText string
}

func (f *fakeDispatcher) OpenDirectChannel(_ context.Context, identity string) (string, error) {
	if f.dmErr != nil {
		return "", f.dmErr
	}
	return "D-" + identity, nil
}

func (f *fakeDispatcher) PostMessage(_ context.Context, channel, text, threadRef string) error {
	if f.hold != nil && text == f.holdText {
		<-f.hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, post{channel, text, threadRef})
	return nil
}

func (f *fakeDispatcher) LookupUser(_ context.Context, identity string) (model.User, error) {
	return model.User{ID: identity}, nil
}

func (f *fakeDispatcher) ScheduleMessage(_ context.Context, channel, text string, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return "", f.scheduleErr
	}
	if f.scheduled == nil {
		f.scheduled = make(map[string]post)
	}
	id := fmt.Sprintf("Q%d", len(f.scheduled)+1)
	f.scheduled[id] = post{channel: channel, text: text}
	return id, nil
}

func (f *fakeDispatcher) DeleteScheduledMessage(_ context.Context, _, scheduledID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, scheduledID)
	return nil
}

func (f *fakeDispatcher) Posts() []post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]post(nil), f.posts...)
}

func (f *fakeDispatcher) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func newScheduler(mode Mode) (*Scheduler, *clock.Mock, *fakeDispatcher) {
	mock := clock.NewMock()
	mock.Set(base)
	dispatcher := &fakeDispatcher{}
	s := New(storage.NewReminders(), dispatcher, mock, Config{
		Location:      atlantic,
		MinLeadTime:   time.Minute,
		SweepInterval: time.Minute,
		Mode:          mode,
	})
	return s, mock, dispatcher
}

func remindMe(task, rawTime string) Request {
	return Request{
		Command: model.RemindCommand{Requester: "U1", Target: "U1", Task: task, RawTime: rawTime},
		Origin:  model.Origin{Channel: "C1", ThreadRef: "T1"},
	}
}

func TestScheduleRejectsTooSoon(t *testing.T) {
	s, _, dispatcher := newScheduler(ModeTimer)

	_, err := s.Schedule(context.Background(), remindMe("stretch", "in 30 seconds"))
	assert.ErrorIs(t, err, model.ErrTooSoon)

	req := remindMe("stretch", "")
	req.FireAt = base.Add(59 * time.Second)
	_, err = s.Schedule(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrTooSoon)

	assert.Empty(t, s.List("U1"))
	assert.Empty(t, dispatcher.Posts())

	req.FireAt = base.Add(time.Minute)
	reminder, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reminder.FireAt.Sub(reminder.CreatedAt), time.Minute)
}

func TestScheduleRejectsUnparseableTime(t *testing.T) {
	s, _, _ := newScheduler(ModeTimer)

	_, err := s.Schedule(context.Background(), remindMe("stretch", "whenever"))
	assert.ErrorIs(t, err, model.ErrTimeUnparseable)
	assert.Empty(t, s.List("U1"))
}

func TestScheduleEnforcesLimit(t *testing.T) {
	s, _, _ := newScheduler(ModeTimer)
	s.cfg.MaxPerUser = 2

	for i := 0; i < 2; i++ {
		_, err := s.Schedule(context.Background(), remindMe("stretch", "in 5 minutes"))
		require.NoError(t, err)
	}

	_, err := s.Schedule(context.Background(), remindMe("stretch", "in 5 minutes"))
	assert.ErrorIs(t, err, model.ErrLimitReached)
	assert.Len(t, s.List("U1"), 2)
}

func TestScheduleAcknowledgesInThread(t *testing.T) {
	s, _, dispatcher := newScheduler(ModeTimer)

	req := remindMe("call mom", "9:30 pm")
	req.Acknowledge = func(model.Reminder) string { return "I will do it." }

	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []post{{"C1", "I will do it.", "T1"}}, dispatcher.Posts())
}

func TestTimerDeliversOnce(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeTimer)

	_, err := s.Schedule(context.Background(), remindMe("call mom", "in 5 minutes"))
	require.NoError(t, err)

	mock.Add(4 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, dispatcher.Posts())

	mock.Add(time.Minute)
	assert.Eventually(t, func() bool { return len(dispatcher.Posts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, post{"D-U1", "⏰ Reminder: call mom", ""}, dispatcher.Posts()[0])

	s.Sweep(context.Background())
	mock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dispatcher.Posts(), 1)
	assert.Empty(t, s.List("U1"))
}

func TestSweepIsBoundaryInclusive(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeSweep)

	req := remindMe("on time", "")
	req.FireAt = base.Add(2 * time.Minute)
	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	later := remindMe("later", "")
	later.FireAt = base.Add(2*time.Minute + time.Second)
	_, err = s.Schedule(context.Background(), later)
	require.NoError(t, err)

	mock.Set(base.Add(2 * time.Minute))
	s.Sweep(context.Background())

	require.Len(t, dispatcher.Posts(), 1)
	assert.Equal(t, "⏰ Reminder: on time", dispatcher.Posts()[0].text)

	remaining := s.List("U1")
	require.Len(t, remaining, 1)
	assert.Equal(t, "later", remaining[0].Task)
}

func TestStartRunsSweepOnInterval(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeSweep)
	s.Start(context.Background())
	defer s.Stop()

	req := remindMe("tick", "")
	req.FireAt = base.Add(time.Minute)
	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	mock.Add(time.Minute)
	assert.Eventually(t, func() bool { return len(dispatcher.Posts()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSlowDeliveryDoesNotDelayNextSweep(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeSweep)
	dispatcher.hold = make(chan struct{})
	dispatcher.holdText = "⏰ Reminder: slow"
	s.Start(context.Background())

	slow := remindMe("slow", "")
	slow.FireAt = base.Add(time.Minute)
	_, err := s.Schedule(context.Background(), slow)
	require.NoError(t, err)

	fast := remindMe("fast", "")
	fast.FireAt = base.Add(2 * time.Minute)
	_, err = s.Schedule(context.Background(), fast)
	require.NoError(t, err)

	mock.Add(time.Minute)
	assert.Eventually(t, func() bool { return len(s.List("U1")) == 1 }, time.Second, 5*time.Millisecond)

	mock.Add(time.Minute)
	assert.Eventually(t, func() bool {
		posts := dispatcher.Posts()
		return len(posts) == 1 && posts[0].text == "⏰ Reminder: fast"
	}, time.Second, 5*time.Millisecond)

	close(dispatcher.hold)
	s.Stop()

	assert.Len(t, dispatcher.Posts(), 2)
	assert.Empty(t, s.List("U1"))
}

func TestCancelStopsDelivery(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeTimer)

	reminder, err := s.Schedule(context.Background(), remindMe("call mom", "in 5 minutes"))
	require.NoError(t, err)

	_, err = s.Cancel(context.Background(), reminder.ID, "U2")
	assert.ErrorIs(t, err, model.ErrNotFound)

	cancelled, err := s.Cancel(context.Background(), reminder.ID, "U1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	mock.Add(10 * time.Minute)
	s.Sweep(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, dispatcher.Posts())

	_, err = s.Cancel(context.Background(), reminder.ID, "U1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCancelAndDeliveryRace(t *testing.T) {
	for i := 0; i < 100; i++ {
		s, mock, dispatcher := newScheduler(ModeSweep)

		req := remindMe("race", "")
		req.FireAt = base.Add(time.Minute)
		reminder, err := s.Schedule(context.Background(), req)
		require.NoError(t, err)
		mock.Set(reminder.FireAt)

		var (
			wg        sync.WaitGroup
			cancelErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Sweep(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = s.Cancel(context.Background(), reminder.ID, "U1")
		}()
		wg.Wait()

		delivered := len(dispatcher.Posts()) == 1
		cancelled := cancelErr == nil
		assert.True(t, delivered != cancelled, "delivered=%v cancelled=%v", delivered, cancelled)
	}
}

func TestDeliveryFallsBackToOriginChannel(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeSweep)
	dispatcher.dmErr = model.ErrChannelUnavailable

	req := Request{
		Command: model.RemindCommand{Requester: "U1", Target: "U2", Task: "review PR"},
		Origin:  model.Origin{Channel: "C1", ThreadRef: "T1"},
		FireAt:  base.Add(time.Hour),
	}
	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	mock.Add(time.Hour)
	s.Sweep(context.Background())

	assert.Equal(t, []post{{"C1", "⏰ Reminder for <@U2>: review PR", "T1"}}, dispatcher.Posts())
}

func TestDeliveryToOtherUserNamesRequester(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeSweep)

	req := Request{
		Command: model.RemindCommand{Requester: "U1", Target: "U2", Task: "review PR"},
		Origin:  model.Origin{Channel: "C1"},
		FireAt:  base.Add(time.Hour),
	}
	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	mock.Add(time.Hour)
	s.Sweep(context.Background())

	assert.Equal(t, []post{{"D-U2", "⏰ Reminder: review PR (from <@U1>)", ""}}, dispatcher.Posts())
}

func TestDeliveryFailureStillRetires(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeSweep)
	dispatcher.postErr = errors.New("channel_not_found")

	req := remindMe("doomed", "")
	req.FireAt = base.Add(time.Minute)
	_, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)

	mock.Add(time.Minute)
	s.Sweep(context.Background())
	s.Sweep(context.Background())

	assert.Equal(t, 1, dispatcher.Attempts())
	assert.Empty(t, s.List("U1"))
}

func TestPlatformModeHandsOffDelivery(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModePlatform)

	reminder, err := s.Schedule(context.Background(), remindMe("call mom", "in 5 minutes"))
	require.NoError(t, err)

	require.Len(t, dispatcher.scheduled, 1)
	assert.Equal(t, post{channel: "D-U1", text: "⏰ Reminder: call mom"}, dispatcher.scheduled["Q1"])

	mock.Add(5 * time.Minute)
	assert.Eventually(t, func() bool { return len(s.List("U1")) == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, dispatcher.Posts())

	_, err = s.Cancel(context.Background(), reminder.ID, "U1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPlatformModeCancelDeletesScheduledMessage(t *testing.T) {
	s, _, dispatcher := newScheduler(ModePlatform)

	reminder, err := s.Schedule(context.Background(), remindMe("call mom", "in 5 minutes"))
	require.NoError(t, err)

	_, err = s.Cancel(context.Background(), reminder.ID, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, dispatcher.deleted)
}

func TestPlatformModeFallsBackToTimer(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModePlatform)
	dispatcher.scheduleErr = model.ErrUnsupported

	_, err := s.Schedule(context.Background(), remindMe("call mom", "in 5 minutes"))
	require.NoError(t, err)

	mock.Add(5 * time.Minute)
	assert.Eventually(t, func() bool { return len(dispatcher.Posts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "D-U1", dispatcher.Posts()[0].channel)
}

func TestListRoundTrip(t *testing.T) {
	s, _, _ := newScheduler(ModeTimer)

	_, err := s.Schedule(context.Background(), remindMe("call mom", "9:30 pm"))
	require.NoError(t, err)

	list := s.List("U1")
	require.Len(t, list, 1)
	assert.Equal(t, "call mom", list[0].Task)
	assert.Equal(t, "Thu Oct 15, 2026 9:30 PM ADT", utils.FormatTime(list[0].FireAt, s.Location()))
}

func TestStopDisarmsTimers(t *testing.T) {
	s, mock, dispatcher := newScheduler(ModeTimer)
	s.Start(context.Background())

	_, err := s.Schedule(context.Background(), remindMe("call mom", "in 5 minutes"))
	require.NoError(t, err)

	s.Stop()
	mock.Add(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, dispatcher.Posts())
	assert.Len(t, s.List("U1"), 1)
}
