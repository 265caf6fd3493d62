package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew       = "team.service.new"
	opCreateConference = "team.create_conference"
	opListConferences  = "team.list_conferences"
	opMembers          = "team.members"
	opAddMember        = "team.add_member"
)

// ServiceError carries an operation-scoped failure code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the team service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages teams, membership, and conferences.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the team service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// CreateConference persists a conference under the given team.
func (s *Service) CreateConference(ctx context.Context, conference Conference) (Conference, error) {
	if strings.TrimSpace(conference.TeamID) == "" || strings.TrimSpace(conference.Name) == "" {
		return Conference{}, newServiceError(opCreateConference, "missing_fields", nil)
	}
	if conference.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return Conference{}, newServiceError(opCreateConference, "id_generation_failed", err)
		}
		conference.ID = id
	}
	if err := s.db.WithContext(ctx).Create(&conference).Error; err != nil {
		s.logger.Error("team service error",
			zap.String("operation", opCreateConference),
			zap.String("reason", "insert_failed"),
			zap.Error(err))
		return Conference{}, newServiceError(opCreateConference, "insert_failed", err)
	}
	return conference, nil
}

// ListConferences returns all conferences for a team, soonest first.
func (s *Service) ListConferences(ctx context.Context, teamID string) ([]Conference, error) {
	var conferences []Conference
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("starts_at ASC").
		Find(&conferences).Error; err != nil {
		return nil, newServiceError(opListConferences, "query_failed", err)
	}
	return conferences, nil
}

// Members returns the membership roster for a team.
func (s *Service) Members(ctx context.Context, teamID string) ([]Member, error) {
	var members []Member
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, newServiceError(opMembers, "query_failed", err)
	}
	return members, nil
}

// AddMember registers a user on a team. Adding an existing member updates
// the display fields in place.
func (s *Service) AddMember(ctx context.Context, member Member) error {
	if strings.TrimSpace(member.TeamID) == "" || strings.TrimSpace(member.UserID) == "" {
		return newServiceError(opAddMember, "missing_fields", nil)
	}
	if err := s.db.WithContext(ctx).Save(&member).Error; err != nil {
		return newServiceError(opAddMember, "save_failed", err)
	}
	return nil
}

// ConferenceTeam resolves the owning team for a conference id.
func (s *Service) ConferenceTeam(ctx context.Context, conferenceID string) (string, error) {
	var conference Conference
	err := s.db.WithContext(ctx).
		Where("conference_id = ?", conferenceID).
		Take(&conference).Error
	if err != nil {
		return "", newServiceError(opListConferences, "conference_lookup_failed", err)
	}
	return conference.TeamID, nil
}
