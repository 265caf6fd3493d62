// Package notify schedules push-style reminders. Delivery itself is an
// external concern behind the Sender interface; this package owns only the
// timer bookkeeping.
package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notification is the payload handed to the Sender when a timer fires.
type Notification struct {
	ID    string
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a fired notification to the push transport.
type Sender interface {
	Send(notification Notification) error
}

// LogSender writes fired notifications to the log. Used when no push
// transport is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(notification Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification fired",
		zap.String("notification_id", notification.ID),
		zap.String("title", notification.Title),
		zap.String("body", notification.Body))
	return nil
}

// SchedulerConfig describes the dependencies of a Scheduler.
type SchedulerConfig struct {
	Sender Sender
	Logger *zap.Logger
}

// Scheduler owns pending reminders. Fired and cancelled entries leave List.
type Scheduler struct {
	sender Sender
	logger *zap.Logger

	mu      sync.Mutex
	nextID  int64
	pending map[string]*pendingNotification
}

type pendingNotification struct {
	notification Notification
	timer        *time.Timer
}

// NewScheduler constructs a Scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Sender == nil {
		return nil, fmt.Errorf("notify: sender required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sender:  cfg.Sender,
		logger:  logger,
		pending: make(map[string]*pendingNotification),
	}, nil
}

// Schedule queues a notification after the given delay and returns its id.
// A zero or negative delay sends immediately.
func (s *Scheduler) Schedule(title, body string, data map[string]string, delay time.Duration) string {
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("notification-%d", s.nextID)
	notification := Notification{ID: id, Title: title, Body: body, Data: data}

	if delay <= 0 {
		s.mu.Unlock()
		s.deliver(notification)
		return id
	}

	entry := &pendingNotification{notification: notification}
	entry.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, stillPending := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		if stillPending {
			s.deliver(notification)
		}
	})
	s.pending[id] = entry
	s.mu.Unlock()
	return id
}

// Cancel stops a pending notification. Cancelling an unknown or already
// fired id is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		entry.timer.Stop()
	}
}

// List returns the notifications still waiting to fire.
func (s *Scheduler) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.pending))
	for _, entry := range s.pending {
		out = append(out, entry.notification)
	}
	return out
}

// Shutdown cancels every pending notification.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	entries := make([]*pendingNotification, 0, len(s.pending))
	for _, entry := range s.pending {
		entries = append(entries, entry)
	}
	s.pending = make(map[string]*pendingNotification)
	s.mu.Unlock()
	for _, entry := range entries {
		entry.timer.Stop()
	}
}

func (s *Scheduler) deliver(notification Notification) {
	if err := s.sender.Send(notification); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("notification_id", notification.ID),
			zap.Error(err))
	}
}
