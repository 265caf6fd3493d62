package posts

import "time"

// Status enumerates the lifecycle of a social post.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// EngagementType enumerates the recorded engagement kinds.
type EngagementType string

const (
	EngagementLike    EngagementType = "like"
	EngagementComment EngagementType = "comment"
	EngagementShare   EngagementType = "share"
)

// Post is a scheduled or published social-media post authored by a team
// member during a conference.
type Post struct {
	ID           string     `gorm:"column:post_id;primaryKey;size:190;not null"`
	ConferenceID string     `gorm:"column:conference_id;size:190;not null;index"`
	AuthorID     string     `gorm:"column:author_id;size:190;not null"`
	Channel      string     `gorm:"column:channel;size:32;not null"`
	Content      string     `gorm:"column:content;type:text;not null"`
	Status       Status     `gorm:"column:status;size:16;not null;default:'scheduled'"`
	ScheduledFor *time.Time `gorm:"column:scheduled_for"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RequiredBy   *time.Time `gorm:"column:required_by"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// Engagement records a single (post, user) engagement. The unique index
// makes repeat engagements by the same user idempotent.
type Engagement struct {
	ID             string         `gorm:"column:engagement_id;primaryKey;size:190;not null"`
	PostID         string         `gorm:"column:post_id;size:190;not null;uniqueIndex:idx_engagements_post_user,priority:1"`
	UserID         string         `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_engagements_post_user,priority:2"`
	EngagementType EngagementType `gorm:"column:engagement_type;size:16;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Engagement) TableName() string {
	return "post_engagements"
}
