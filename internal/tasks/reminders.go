package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/observability"
)

// ReminderPlanner keeps one scheduled push reminder per pending urgent task
// for a viewer, reconciling against each freshly derived task set. Safe for
// concurrent use.
type ReminderPlanner struct {
	scheduler *notify.Scheduler
	lead      time.Duration

	mu        sync.Mutex
	scheduled map[string]string
}

// NewReminderPlanner constructs a planner. lead is how long before the
// deadline the reminder fires.
func NewReminderPlanner(scheduler *notify.Scheduler, lead time.Duration) *ReminderPlanner {
	if lead <= 0 {
		lead = 30 * time.Minute
	}
	return &ReminderPlanner{
		scheduler: scheduler,
		lead:      lead,
		scheduled: make(map[string]string),
	}
}

// Plan reconciles scheduled reminders with the viewer's pending tasks:
// newly urgent tasks gain a reminder, tasks no longer pending lose theirs.
func (p *ReminderPlanner) Plan(set TaskSet, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := make(map[string]Task, len(set.Mine))
	for _, task := range set.Mine {
		pending[taskKey(task)] = task
	}

	for key, notificationID := range p.scheduled {
		if _, still := pending[key]; !still {
			p.scheduler.Cancel(notificationID)
			delete(p.scheduled, key)
		}
	}

	for _, task := range set.Mine {
		key := taskKey(task)
		if _, already := p.scheduled[key]; already {
			continue
		}
		delay := task.RequiredBy.Add(-p.lead).Sub(now)
		notificationID := p.scheduler.Schedule(
			"Engagement deadline approaching",
			fmt.Sprintf("A teammate's post needs your engagement by %s", task.RequiredBy.Format(time.Kitchen)),
			map[string]string{"post_id": task.Post.ID},
			delay,
		)
		p.scheduled[key] = notificationID
		observability.RecordReminderScheduled()
	}
}

func taskKey(task Task) string {
	return task.Post.ID + "/" + task.CommenterID
}
