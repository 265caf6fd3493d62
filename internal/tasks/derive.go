// Package tasks derives cross-pollination obligations from posts, team
// membership, and recorded engagements. Tasks are a view, never stored:
// completing one is the moment the underlying engagement row exists, so
// consumers re-derive after every posts/engagements reload instead of
// caching a task list.
package tasks

import (
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/team"
)

// DefaultUrgentThreshold classifies a task urgent when less than this much
// time remains before its deadline.
const DefaultUrgentThreshold = 2 * time.Hour

// Task is a pending obligation for CommenterID to engage with Post before
// RequiredBy.
type Task struct {
	Post        posts.Post
	CommenterID string
	RequiredBy  time.Time
	Remaining   time.Duration
}

// TaskSet partitions the pending tasks for a viewer.
type TaskSet struct {
	All    []Task
	Urgent []Task
	Mine   []Task
}

// Config tunes derivation.
type Config struct {
	UrgentThreshold time.Duration
}

// Derive computes the pending task set. A task is pending for every
// (published post, team member) pair where the member is not the author,
// no engagement row exists for the pair, and the deadline has not elapsed.
// A post whose team has no other members yields no tasks.
func Derive(published []posts.Post, engagements []posts.Engagement, members []team.Member, viewerID string, now time.Time, cfg Config) TaskSet {
	threshold := cfg.UrgentThreshold
	if threshold <= 0 {
		threshold = DefaultUrgentThreshold
	}

	engaged := make(map[string]map[string]bool, len(published))
	for _, engagement := range engagements {
		byUser := engaged[engagement.PostID]
		if byUser == nil {
			byUser = make(map[string]bool)
			engaged[engagement.PostID] = byUser
		}
		byUser[engagement.UserID] = true
	}

	var set TaskSet
	for _, post := range published {
		if post.Status != posts.StatusPublished || post.RequiredBy == nil {
			continue
		}
		requiredBy := *post.RequiredBy
		if !now.Before(requiredBy) {
			continue
		}
		for _, member := range members {
			if member.UserID == post.AuthorID {
				continue
			}
			if engaged[post.ID][member.UserID] {
				continue
			}
			task := Task{
				Post:        post,
				CommenterID: member.UserID,
				RequiredBy:  requiredBy,
				Remaining:   requiredBy.Sub(now),
			}
			set.All = append(set.All, task)
			if task.Remaining < threshold {
				set.Urgent = append(set.Urgent, task)
			}
			if member.UserID == viewerID {
				set.Mine = append(set.Mine, task)
			}
		}
	}

	sortTasks(set.All)
	sortTasks(set.Urgent)
	sortTasks(set.Mine)
	return set
}

// sortTasks orders by deadline, then post, then commenter for stable output.
func sortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].RequiredBy.Equal(tasks[j].RequiredBy) {
			return tasks[i].RequiredBy.Before(tasks[j].RequiredBy)
		}
		if tasks[i].Post.ID != tasks[j].Post.ID {
			return tasks[i].Post.ID < tasks[j].Post.ID
		}
		return tasks[i].CommenterID < tasks[j].CommenterID
	})
}
