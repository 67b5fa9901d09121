package storage

import (
	"sync"
	"time"

	"github.com/Brawl345/remindbot/logger"
	"github.com/Brawl345/remindbot/model"
	"github.com/rs/xid"
	"golang.org/x/exp/slices"
)

var log = logger.New("storage")

type (
	ReminderStorage interface {
		Add(reminder model.Reminder) (string, error)
		Get(id string) (model.Reminder, error)
		ListByUser(identity string) []model.Reminder
		DueAsOf(instant time.Time) []model.Reminder
		CountPending(identity string) int
		Claim(id string) (model.Reminder, bool)
		Cancel(id, identity string) (model.Reminder, error)
		MarkScheduled(id, channel, scheduledID string) bool
		Remove(id string) bool
	}

	// Reminders keeps pending reminders in process memory. A reminder leaves
	// the map the moment it reaches a terminal state.
	Reminders struct {
		mu        sync.Mutex
		reminders map[string]*model.Reminder
	}
)

func NewReminders() *Reminders {
	return &Reminders{
		reminders: make(map[string]*model.Reminder),
	}
}

// Add stores a copy of the reminder in the pending state. An empty ID is
// replaced by a fresh xid, which is never reissued during the process lifetime.
func (s *Reminders) Add(reminder model.Reminder) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reminder.ID == "" {
		reminder.ID = xid.New().String()
	}
	if _, exists := s.reminders[reminder.ID]; exists {
		return "", model.ErrAlreadyExists
	}

	reminder.Status = model.StatusPending
	s.reminders[reminder.ID] = &reminder

	log.Debug().
		Str("id", reminder.ID).
		Str("target", reminder.Target).
		Time("fire_at", reminder.FireAt).
		Msg("Reminder stored")

	return reminder.ID, nil
}

func (s *Reminders) Get(id string) (model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.reminders[id]
	if !exists {
		return model.Reminder{}, model.ErrNotFound
	}
	return *reminder, nil
}

// ListByUser returns the pending reminders the user created or will receive,
// ordered by fire time.
func (s *Reminders) ListByUser(identity string) []model.Reminder {
	s.mu.Lock()
	reminders := make([]model.Reminder, 0)
	for _, reminder := range s.reminders {
		if reminder.Requester == identity || reminder.Target == identity {
			reminders = append(reminders, *reminder)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(reminders, byFireAt)
	return reminders
}

// DueAsOf returns a snapshot of the reminders with FireAt <= instant.
func (s *Reminders) DueAsOf(instant time.Time) []model.Reminder {
	s.mu.Lock()
	var due []model.Reminder
	for _, reminder := range s.reminders {
		if !reminder.FireAt.After(instant) {
			due = append(due, *reminder)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(due, byFireAt)
	return due
}

func (s *Reminders) CountPending(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	for _, reminder := range s.reminders {
		if reminder.Requester == identity {
			count++
		}
	}
	return count
}

// Claim moves a pending reminder to Fired and removes it. Only the first
// caller for a given ID gets ok == true.
func (s *Reminders) Claim(id string) (model.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.reminders[id]
	if !exists {
		return model.Reminder{}, false
	}
	delete(s.reminders, id)

	reminder.Status = model.StatusFired
	return *reminder, true
}

// Cancel moves a pending reminder to Cancelled and removes it. Only the
// requester or the target may cancel; anyone else gets ErrNotFound.
func (s *Reminders) Cancel(id, identity string) (model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.reminders[id]
	if !exists {
		return model.Reminder{}, model.ErrNotFound
	}
	if identity != "" && reminder.Requester != identity && reminder.Target != identity {
		return model.Reminder{}, model.ErrNotFound
	}
	delete(s.reminders, id)

	reminder.Status = model.StatusCancelled
	return *reminder, nil
}

// MarkScheduled records that the platform holds the delivery of a pending
// reminder. It returns false when the reminder already left the store.
func (s *Reminders) MarkScheduled(id, channel, scheduledID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.reminders[id]
	if !exists {
		return false
	}
	reminder.ScheduledChannel = channel
	reminder.ScheduledID = scheduledID
	return true
}

func (s *Reminders) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.reminders[id]
	delete(s.reminders, id)
	return exists
}

func byFireAt(a, b model.Reminder) int {
	return a.FireAt.Compare(b.FireAt)
}
