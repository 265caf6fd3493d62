package tasks

import (
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
)

type captureSender struct {
	mu    sync.Mutex
	fired []notify.Notification
}

func (s *captureSender) Send(notification notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = append(s.fired, notification)
	return nil
}

func newPlanner(t *testing.T) (*ReminderPlanner, *notify.Scheduler) {
	t.Helper()
	scheduler, err := notify.NewScheduler(notify.SchedulerConfig{Sender: &captureSender{}})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	return NewReminderPlanner(scheduler, 30*time.Minute), scheduler
}

func taskFor(postID string, requiredBy time.Time) Task {
	return Task{
		Post:        posts.Post{ID: postID, AuthorID: "author"},
		CommenterID: "viewer",
		RequiredBy:  requiredBy,
	}
}

func TestPlanSchedulesOneReminderPerTask(t *testing.T) {
	planner, scheduler := newPlanner(t)
	defer scheduler.Shutdown()

	now := time.Unix(1700000000, 0)
	set := TaskSet{Mine: []Task{taskFor("post-1", now.Add(2*time.Hour))}}

	planner.Plan(set, now)
	if pending := scheduler.List(); len(pending) != 1 {
		t.Fatalf("expected one scheduled reminder, got %d", len(pending))
	}

	// re-planning the same set must not duplicate the reminder.
	planner.Plan(set, now)
	if pending := scheduler.List(); len(pending) != 1 {
		t.Fatalf("expected reminder to be stable across replans, got %d", len(pending))
	}
}

func TestPlanCancelsCompletedTasks(t *testing.T) {
	planner, scheduler := newPlanner(t)
	defer scheduler.Shutdown()

	now := time.Unix(1700000000, 0)
	planner.Plan(TaskSet{Mine: []Task{taskFor("post-1", now.Add(2*time.Hour))}}, now)
	if len(scheduler.List()) != 1 {
		t.Fatalf("expected scheduled reminder")
	}

	// the task disappears from the derived set once the engagement exists.
	planner.Plan(TaskSet{}, now)
	if pending := scheduler.List(); len(pending) != 0 {
		t.Fatalf("expected reminder cancelled, got %d pending", len(pending))
	}
}
