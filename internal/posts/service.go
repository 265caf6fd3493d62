package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Default engagement window granted to teammates after a post goes live.
const defaultDeadlineWindow = 24 * time.Hour

var (
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("posts: post not found")
	// ErrAlreadyPublished indicates a publish call on a post that is already live.
	ErrAlreadyPublished = errors.New("posts: post already published")
	// ErrNotPublished indicates an engagement on a post that is not live yet.
	ErrNotPublished = errors.New("posts: post not published")
)

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the posts service.
type ServiceConfig struct {
	Database       *gorm.DB
	Activity       *activity.Service
	Clock          func() time.Time
	IDProvider     IDProvider
	Logger         *zap.Logger
	DeadlineWindow time.Duration
}

// Service manages posts and engagements. Publishing and first engagements
// append to the team activity log.
type Service struct {
	db             *gorm.DB
	activity       *activity.Service
	clock          func() time.Time
	idProvider     IDProvider
	logger         *zap.Logger
	deadlineWindow time.Duration
}

// NewService constructs the posts service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("posts: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("posts: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.DeadlineWindow
	if window <= 0 {
		window = defaultDeadlineWindow
	}
	return &Service{
		db:             cfg.Database,
		activity:       cfg.Activity,
		clock:          clock,
		idProvider:     cfg.IDProvider,
		logger:         logger,
		deadlineWindow: window,
	}, nil
}

// Schedule persists a draft post for later publication.
func (s *Service) Schedule(ctx context.Context, post Post) (Post, error) {
	if strings.TrimSpace(post.ConferenceID) == "" || strings.TrimSpace(post.AuthorID) == "" {
		return Post{}, fmt.Errorf("posts: conference and author required")
	}
	if strings.TrimSpace(post.Content) == "" {
		return Post{}, fmt.Errorf("posts: content required")
	}
	if post.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return Post{}, fmt.Errorf("posts: id generation failed: %w", err)
		}
		post.ID = id
	}
	post.Status = StatusScheduled
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return Post{}, fmt.Errorf("posts: schedule failed: %w", err)
	}
	return post, nil
}

// Publish marks a post live, stamps the engagement deadline, and records a
// post_published activity.
func (s *Service) Publish(ctx context.Context, postID, teamID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("posts: publish lookup failed: %w", err)
	}
	if post.Status == StatusPublished {
		return Post{}, ErrAlreadyPublished
	}

	now := s.clock().UTC()
	requiredBy := now.Add(s.deadlineWindow)
	updates := map[string]interface{}{
		"status":       StatusPublished,
		"published_at": now,
		"required_by":  requiredBy,
	}
	if err := s.db.WithContext(ctx).Model(&Post{}).
		Where("post_id = ?", postID).
		Updates(updates).Error; err != nil {
		return Post{}, fmt.Errorf("posts: publish failed: %w", err)
	}
	post.Status = StatusPublished
	post.PublishedAt = &now
	post.RequiredBy = &requiredBy

	if s.activity != nil {
		if _, err := s.activity.Record(ctx, activity.TeamActivity{
			TeamID:       teamID,
			ConferenceID: post.ConferenceID,
			UserID:       post.AuthorID,
			ActivityType: activity.TypePostPublished,
			EntityID:     post.ID,
			Description:  postSummary(post.Content),
		}); err != nil {
			s.logger.Warn("post_published activity record failed",
				zap.String("post_id", post.ID),
				zap.Error(err))
		}
	}
	return post, nil
}

// Engage records a (post, user) engagement. Repeat engagements by the same
// user are absorbed by the unique index; only the first one appends a
// post_engaged activity. Completing a cross-pollination task is exactly
// this insert: tasks are derived, never stored.
func (s *Service) Engage(ctx context.Context, postID, userID, teamID string, engagementType EngagementType) (Engagement, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Engagement{}, ErrPostNotFound
	}
	if err != nil {
		return Engagement{}, fmt.Errorf("posts: engage lookup failed: %w", err)
	}
	if post.Status != StatusPublished {
		return Engagement{}, ErrNotPublished
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Engagement{}, fmt.Errorf("posts: id generation failed: %w", err)
	}
	engagement := Engagement{
		ID:             id,
		PostID:         postID,
		UserID:         userID,
		EngagementType: engagementType,
		CreatedAt:      s.clock().UTC(),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&engagement)
	if result.Error != nil {
		return Engagement{}, fmt.Errorf("posts: engage failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// repeat engagement; return the stored row.
		var existing Engagement
		if err := s.db.WithContext(ctx).
			Where("post_id = ? AND user_id = ?", postID, userID).
			Take(&existing).Error; err != nil {
			return Engagement{}, fmt.Errorf("posts: engage reload failed: %w", err)
		}
		return existing, nil
	}

	if s.activity != nil {
		if _, err := s.activity.Record(ctx, activity.TeamActivity{
			TeamID:       teamID,
			ConferenceID: post.ConferenceID,
			UserID:       userID,
			ActivityType: activity.TypePostEngaged,
			EntityID:     post.ID,
			Description:  fmt.Sprintf("%s on %s", engagementType, postSummary(post.Content)),
		}); err != nil {
			s.logger.Warn("post_engaged activity record failed",
				zap.String("post_id", post.ID),
				zap.Error(err))
		}
	}
	return engagement, nil
}

// Get fetches a single post by id.
func (s *Service) Get(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("posts: lookup failed: %w", err)
	}
	return post, nil
}

// ListPublished returns the live posts for a conference, newest first.
func (s *Service) ListPublished(ctx context.Context, conferenceID string) ([]Post, error) {
	var published []Post
	err := s.db.WithContext(ctx).
		Where("conference_id = ? AND status = ?", conferenceID, StatusPublished).
		Order("published_at DESC").
		Find(&published).Error
	if err != nil {
		return nil, fmt.Errorf("posts: list failed: %w", err)
	}
	return published, nil
}

// ListEngagements returns every engagement against the conference's posts.
func (s *Service) ListEngagements(ctx context.Context, conferenceID string) ([]Engagement, error) {
	var engagements []Engagement
	err := s.db.WithContext(ctx).
		Joins("JOIN posts ON posts.post_id = post_engagements.post_id").
		Where("posts.conference_id = ?", conferenceID).
		Find(&engagements).Error
	if err != nil {
		return nil, fmt.Errorf("posts: list engagements failed: %w", err)
	}
	return engagements, nil
}

func postSummary(content string) string {
	trimmed := strings.TrimSpace(content)
	runes := []rune(trimmed)
	if len(runes) <= 50 {
		return trimmed
	}
	return string(runes[:50])
}
