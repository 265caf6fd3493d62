package tasks

import (
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/team"
)

func publishedPost(id, authorID string, requiredBy time.Time) posts.Post {
	publishedAt := requiredBy.Add(-24 * time.Hour)
	return posts.Post{
		ID:           id,
		ConferenceID: "conf-1",
		AuthorID:     authorID,
		Status:       posts.StatusPublished,
		PublishedAt:  &publishedAt,
		RequiredBy:   &requiredBy,
	}
}

func roster(userIDs ...string) []team.Member {
	members := make([]team.Member, 0, len(userIDs))
	for _, userID := range userIDs {
		members = append(members, team.Member{TeamID: "team-1", UserID: userID, DisplayName: userID})
	}
	return members
}

func commenters(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.CommenterID)
	}
	return out
}

func TestDerivePendingSetExcludesAuthorAndEngaged(t *testing.T) {
	now := time.Unix(1700000000, 0)
	post := publishedPost("post-1", "user-d", now.Add(12*time.Hour))
	members := roster("user-a", "user-b", "user-c", "user-d")
	engagements := []posts.Engagement{
		{ID: "e-1", PostID: "post-1", UserID: "user-a", EngagementType: posts.EngagementLike},
	}

	set := Derive([]posts.Post{post}, engagements, members, "user-b", now, Config{})
	if got := commenters(set.All); len(got) != 2 || got[0] != "user-b" || got[1] != "user-c" {
		t.Fatalf("expected pending set {user-b, user-c}, got %v", got)
	}
	if got := commenters(set.Mine); len(got) != 1 || got[0] != "user-b" {
		t.Fatalf("expected viewer's pending set {user-b}, got %v", got)
	}

	// once B engages, only C remains.
	engagements = append(engagements, posts.Engagement{
		ID: "e-2", PostID: "post-1", UserID: "user-b", EngagementType: posts.EngagementComment,
	})
	set = Derive([]posts.Post{post}, engagements, members, "user-b", now, Config{})
	if got := commenters(set.All); len(got) != 1 || got[0] != "user-c" {
		t.Fatalf("expected pending set {user-c}, got %v", got)
	}
	if len(set.Mine) != 0 {
		t.Fatalf("expected viewer's set empty after engaging, got %v", commenters(set.Mine))
	}
}

func TestDeriveUrgencyThreshold(t *testing.T) {
	now := time.Unix(1700000000, 0)
	members := roster("author", "viewer")

	soon := publishedPost("post-soon", "author", now.Add(10*time.Minute))
	later := publishedPost("post-later", "author", now.Add(3*time.Hour))

	set := Derive([]posts.Post{soon, later}, nil, members, "viewer", now, Config{UrgentThreshold: 2 * time.Hour})
	if len(set.All) != 2 {
		t.Fatalf("expected two pending tasks, got %d", len(set.All))
	}
	if len(set.Urgent) != 1 {
		t.Fatalf("expected one urgent task, got %d", len(set.Urgent))
	}
	if set.Urgent[0].Post.ID != "post-soon" {
		t.Fatalf("expected the 10-minute deadline to be urgent, got %s", set.Urgent[0].Post.ID)
	}
}

func TestDeriveSkipsElapsedDeadlines(t *testing.T) {
	now := time.Unix(1700000000, 0)
	members := roster("author", "viewer")
	expired := publishedPost("post-expired", "author", now.Add(-time.Minute))

	set := Derive([]posts.Post{expired}, nil, members, "viewer", now, Config{})
	if len(set.All) != 0 {
		t.Fatalf("expected no tasks for elapsed deadline, got %d", len(set.All))
	}
}

func TestDeriveLoneAuthorYieldsNoTasks(t *testing.T) {
	now := time.Unix(1700000000, 0)
	post := publishedPost("post-1", "author", now.Add(time.Hour))

	set := Derive([]posts.Post{post}, nil, roster("author"), "author", now, Config{})
	if len(set.All) != 0 {
		t.Fatalf("expected no tasks without other members, got %d", len(set.All))
	}
}

func TestDeriveIgnoresUnpublishedPosts(t *testing.T) {
	now := time.Unix(1700000000, 0)
	scheduled := posts.Post{
		ID:           "post-draft",
		ConferenceID: "conf-1",
		AuthorID:     "author",
		Status:       posts.StatusScheduled,
	}

	set := Derive([]posts.Post{scheduled}, nil, roster("author", "viewer"), "viewer", now, Config{})
	if len(set.All) != 0 {
		t.Fatalf("expected no tasks for unpublished post, got %d", len(set.All))
	}
}

func TestDeriveOrdersByDeadline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	members := roster("author", "viewer")
	first := publishedPost("post-b", "author", now.Add(time.Hour))
	second := publishedPost("post-a", "author", now.Add(2*time.Hour))

	set := Derive([]posts.Post{second, first}, nil, members, "viewer", now, Config{})
	if len(set.All) != 2 {
		t.Fatalf("expected two tasks, got %d", len(set.All))
	}
	if set.All[0].Post.ID != "post-b" {
		t.Fatalf("expected soonest deadline first, got %s", set.All[0].Post.ID)
	}
}
