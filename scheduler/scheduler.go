package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/Brawl345/remindbot/storage"
	"github.com/Brawl345/remindbot/utils/timeUtils"
	"github.com/benbjohnson/clock"
)

var log = logger.New("scheduler")

type Mode string

const (
	// ModeTimer arms a one-shot timer per reminder. The sweep still runs and
	// picks up anything a timer missed.
	ModeTimer Mode = "timer"
	// ModeSweep relies on the periodic sweep alone.
	ModeSweep Mode = "sweep"
	// ModePlatform hands the send to the chat platform and only retires the
	// reminder locally. Falls back to ModeTimer if the platform can't do it.
	ModePlatform Mode = "platform"
)

type (
	Config struct {
		Location      *time.Location
		MinLeadTime   time.Duration
		SweepInterval time.Duration
		Mode          Mode
		// MaxPerUser caps pending reminders per requester, 0 means unlimited.
		MaxPerUser int
	}

	Request struct {
		Command model.RemindCommand
		Origin  model.Origin

		// FireAt skips parsing Command.RawTime when set.
		FireAt time.Time

		// Acknowledge builds the confirmation posted to the origin. Nothing is
		// posted when it is nil.
		Acknowledge func(reminder model.Reminder) string
	}

	Scheduler struct {
		store      storage.ReminderStorage
		dispatcher model.Dispatcher
		clock      clock.Clock
		cfg        Config

		mu     sync.Mutex
		timers map[string]*clock.Timer
		cancel context.CancelFunc
		done   chan struct{}

		deliveries sync.WaitGroup
	}
)

func New(store storage.ReminderStorage, dispatcher model.Dispatcher, clk clock.Clock, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeTimer
	}

	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		clock:      clk,
		cfg:        cfg,
		timers:     make(map[string]*clock.Timer),
	}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *Scheduler) Location() *time.Location {
	return s.cfg.Location
}

// Schedule validates the request and registers exactly one future delivery.
// Rejections wrap ErrTimeUnparseable, ErrTooSoon or ErrLimitReached and leave
// nothing behind in the store.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (model.Reminder, error) {
	now := s.clock.Now()

	fireAt := req.FireAt
	if fireAt.IsZero() {
		var err error
		fireAt, err = timeUtils.Parse(req.Command.RawTime, now, s.cfg.Location)
		if err != nil {
			return model.Reminder{}, err
		}
	}

	if lead := fireAt.Sub(now); lead < s.cfg.MinLeadTime {
		return model.Reminder{}, fmt.Errorf("%w: %s ahead, need %s", model.ErrTooSoon, lead, s.cfg.MinLeadTime)
	}

	if s.cfg.MaxPerUser > 0 && s.store.CountPending(req.Command.Requester) >= s.cfg.MaxPerUser {
		return model.Reminder{}, fmt.Errorf("%w: %d pending", model.ErrLimitReached, s.cfg.MaxPerUser)
	}

	reminder := model.Reminder{
		Requester: req.Command.Requester,
		Target:    req.Command.Target,
		Task:      req.Command.Task,
		FireAt:    fireAt,
		CreatedAt: now,
		Origin:    req.Origin,
		Status:    model.StatusPending,
	}

	id, err := s.store.Add(reminder)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("storing reminder: %w", err)
	}
	reminder.ID = id

	switch s.cfg.Mode {
	case ModeTimer:
		s.arm(id, fireAt)
	case ModePlatform:
		// Once the platform holds the message the timer only retires the reminder.
		if err := s.schedulePlatform(ctx, reminder); err != nil && !errors.Is(err, model.ErrUnsupported) {
			log.Err(err).
				Str("id", id).
				Msg("Failed to schedule message on platform, using local timer")
		}
		s.arm(id, fireAt)
	}

	log.Info().
		Str("id", id).
		Str("requester", reminder.Requester).
		Str("target", reminder.Target).
		Time("fire_at", fireAt).
		Msg("Reminder scheduled")

	if req.Acknowledge != nil {
		text := req.Acknowledge(reminder)
		if err := s.dispatcher.PostMessage(ctx, req.Origin.Channel, text, req.Origin.ThreadRef); err != nil {
			log.Err(err).
				Str("id", id).
				Str("channel", req.Origin.Channel).
				Msg("Failed to send acknowledgement")
		}
	}

	return reminder, nil
}

func (s *Scheduler) schedulePlatform(ctx context.Context, reminder model.Reminder) error {
	channel, text := s.resolveChannel(ctx, reminder)
	scheduledID, err := s.dispatcher.ScheduleMessage(ctx, channel, text, reminder.FireAt)
	if err != nil {
		return err
	}

	if !s.store.MarkScheduled(reminder.ID, channel, scheduledID) {
		// Cancelled while we were talking to the platform
		if err := s.dispatcher.DeleteScheduledMessage(ctx, channel, scheduledID); err != nil {
			log.Err(err).
				Str("id", reminder.ID).
				Str("scheduled_id", scheduledID).
				Msg("Failed to delete orphaned scheduled message")
		}
	}
	return nil
}

// arm registers the one-shot timer. The clock may run the callback before
// AfterFunc returns, so no lock is held while arming.
func (s *Scheduler) arm(id string, fireAt time.Time) {
	timer := s.clock.AfterFunc(fireAt.Sub(s.clock.Now()), func() {
		s.deliver(context.Background(), id)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.Get(id); err != nil {
		timer.Stop()
		return
	}
	s.timers[id] = timer
}

func (s *Scheduler) dropTimer(id string) {
	s.mu.Lock()
	timer, exists := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()

	if exists {
		timer.Stop()
	}
}

// deliver claims the reminder and sends it. Whoever claims first delivers;
// timers and sweeps arriving later find nothing and return.
func (s *Scheduler) deliver(ctx context.Context, id string) {
	reminder, ok := s.store.Claim(id)
	s.dropTimer(id)
	if !ok {
		log.Debug().
			Str("id", id).
			Msg("Reminder not found, probably deleted")
		return
	}

	if reminder.ScheduledID != "" {
		log.Info().
			Str("id", id).
			Str("scheduled_id", reminder.ScheduledID).
			Msg("Reminder delivered by platform, retired")
		return
	}

	if err := s.send(ctx, reminder); err != nil {
		log.Err(fmt.Errorf("%w: %w", model.ErrDeliveryFailed, err)).
			Str("id", id).
			Str("target", reminder.Target).
			Msg("Failed to deliver reminder")
		return
	}

	log.Info().
		Str("id", id).
		Str("target", reminder.Target).
		Msg("Reminder delivered")
}

func (s *Scheduler) send(ctx context.Context, reminder model.Reminder) error {
	channel, text := s.resolveChannel(ctx, reminder)
	threadRef := ""
	if channel == reminder.Origin.Channel {
		threadRef = reminder.Origin.ThreadRef
	}
	return s.dispatcher.PostMessage(ctx, channel, text, threadRef)
}

// resolveChannel prefers a private channel with the target and falls back to
// the origin channel with the target tagged.
func (s *Scheduler) resolveChannel(ctx context.Context, reminder model.Reminder) (string, string) {
	channel, err := s.dispatcher.OpenDirectChannel(ctx, reminder.Target)
	if err != nil || channel == "" {
		log.Warn().
			Err(err).
			Str("id", reminder.ID).
			Str("target", reminder.Target).
			Str("channel", reminder.Origin.Channel).
			Msg("Private channel unavailable, falling back to origin channel")
		return reminder.Origin.Channel, FallbackText(reminder)
	}
	return channel, PrivateText(reminder)
}

// Sweep delivers every reminder due at the time of the call and waits for
// those deliveries. Reminders added while the sweep runs wait for the next one.
func (s *Scheduler) Sweep(ctx context.Context) {
	var wg sync.WaitGroup
	s.deliverDue(ctx, &wg)
	wg.Wait()
}

// deliverDue starts one delivery per due reminder and returns without waiting.
func (s *Scheduler) deliverDue(ctx context.Context, wg *sync.WaitGroup) {
	due := s.store.DueAsOf(s.clock.Now())
	if len(due) == 0 {
		return
	}

	log.Debug().
		Int("count", len(due)).
		Msg("Delivering due reminders")

	for _, reminder := range due {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.deliver(ctx, id)
		}(reminder.ID)
	}
}

// Start runs the sweep every SweepInterval until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	ticker := s.clock.Ticker(s.cfg.SweepInterval)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	log.Info().
		Str("mode", string(s.cfg.Mode)).
		Dur("interval", s.cfg.SweepInterval).
		Msg("Starting reminder sweep")

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A slow send must not hold back the next tick
				s.deliverDue(context.WithoutCancel(ctx), &s.deliveries)
			}
		}
	}()
}

// Stop ends the sweep, disarms all timers and waits for deliveries the sweep
// already started. Pending reminders stay in the store.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	timers := s.timers
	s.timers = make(map[string]*clock.Timer)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for _, timer := range timers {
		timer.Stop()
	}
	s.deliveries.Wait()
}

// Cancel retires a pending reminder owned by identity. If its delivery already
// claimed it, Cancel returns ErrNotFound and nothing else happens.
func (s *Scheduler) Cancel(ctx context.Context, id, identity string) (model.Reminder, error) {
	reminder, err := s.store.Cancel(id, identity)
	if err != nil {
		return model.Reminder{}, err
	}
	s.dropTimer(id)

	if reminder.ScheduledID != "" {
		if err := s.dispatcher.DeleteScheduledMessage(ctx, reminder.ScheduledChannel, reminder.ScheduledID); err != nil {
			log.Err(err).
				Str("id", id).
				Str("scheduled_id", reminder.ScheduledID).
				Msg("Failed to delete scheduled message")
		}
	}

	log.Info().
		Str("id", id).
		Str("by", identity).
		Msg("Reminder cancelled")
	return reminder, nil
}

func (s *Scheduler) List(identity string) []model.Reminder {
	return s.store.ListByUser(identity)
}
