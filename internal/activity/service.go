package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// DefaultActivityLimit bounds the recent-activity query and the feed mirror.
const DefaultActivityLimit = 50

const (
	opServiceNew     = "activity.service.new"
	opRecord         = "activity.record"
	opLoadActivities = "activity.load_activities"
	opLoadCheckIns   = "activity.load_check_ins"
	opSubmitCheckIn  = "activity.submit_check_in"
	opGetActivity    = "activity.get_activity"
	opGetCheckIn     = "activity.get_check_in"
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

// ServiceConfig describes the dependencies of the activity service.
type ServiceConfig struct {
	Database   *gorm.DB
	Dispatcher *realtime.Dispatcher
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns the activity log and daily check-ins for conferences. All
// writes publish an insert event on the change-feed dispatcher.
type Service struct {
	db         *gorm.DB
	dispatcher *realtime.Dispatcher
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the activity service.
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
	return &Service{
		db:         cfg.Database,
		dispatcher: cfg.Dispatcher,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Record appends an activity to the log and publishes an insert event.
// Activities are immutable once created.
func (s *Service) Record(ctx context.Context, entry TeamActivity) (TeamActivity, error) {
	if err := validateIdentifier(entry.ConferenceID, ErrInvalidConferenceID); err != nil {
		return TeamActivity{}, newServiceError(opRecord, "invalid_conference_id", err)
	}
	if err := validateIdentifier(entry.UserID, ErrInvalidUserID); err != nil {
		return TeamActivity{}, newServiceError(opRecord, "invalid_user_id", err)
	}
	if _, err := ParseType(string(entry.ActivityType)); err != nil {
		return TeamActivity{}, newServiceError(opRecord, "invalid_activity_type", err)
	}

	if entry.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return TeamActivity{}, newServiceError(opRecord, "id_generation_failed", err)
		}
		entry.ID = id
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opRecord, "insert_failed", err, zap.String("conference_id", entry.ConferenceID))
		return TeamActivity{}, newServiceError(opRecord, "insert_failed", err)
	}

	s.publish(realtime.TableActivities, entry.ConferenceID, entry.ID, entry.CreatedAt)
	return entry, nil
}

// LoadActivities fetches the most recent activities for a conference,
// newest first, with the author's display name joined from team membership.
func (s *Service) LoadActivities(ctx context.Context, conferenceID string, limit int) ([]Entry, error) {
	if err := validateIdentifier(conferenceID, ErrInvalidConferenceID); err != nil {
		return nil, newServiceError(opLoadActivities, "invalid_conference_id", err)
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	var entries []Entry
	err := s.db.WithContext(ctx).
		Table("team_activities").
		Select("team_activities.*, team_members.display_name AS user_display_name").
		Joins("LEFT JOIN team_members ON team_members.team_id = team_activities.team_id AND team_members.user_id = team_activities.user_id").
		Where("team_activities.conference_id = ?", conferenceID).
		Order("team_activities.created_at DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		s.logError(opLoadActivities, "query_failed", err, zap.String("conference_id", conferenceID))
		return nil, newServiceError(opLoadActivities, "query_failed", err)
	}
	return entries, nil
}

// LoadCheckIns fetches all check-ins for a conference on the exact calendar
// date, oldest first.
func (s *Service) LoadCheckIns(ctx context.Context, conferenceID, date string) ([]DailyCheckIn, error) {
	if err := validateIdentifier(conferenceID, ErrInvalidConferenceID); err != nil {
		return nil, newServiceError(opLoadCheckIns, "invalid_conference_id", err)
	}
	if date == "" {
		date = DateOf(s.clock())
	}

	var checkIns []DailyCheckIn
	err := s.db.WithContext(ctx).
		Where("conference_id = ? AND check_in_date = ?", conferenceID, date).
		Order("created_at ASC").
		Find(&checkIns).Error
	if err != nil {
		s.logError(opLoadCheckIns, "query_failed", err, zap.String("conference_id", conferenceID))
		return nil, newServiceError(opLoadCheckIns, "query_failed", err)
	}
	return checkIns, nil
}

// SubmitCheckIn upserts the caller's check-in for the day. The write is a
// true atomic upsert on the (conference, user, date) unique key; the
// preliminary lookup only decides whether a check_in activity is recorded,
// which happens exactly once per new row and never on updates. The
// reconciled day list is returned. Errors propagate to the caller.
func (s *Service) SubmitCheckIn(ctx context.Context, checkIn DailyCheckIn) ([]DailyCheckIn, error) {
	if err := validateIdentifier(checkIn.ConferenceID, ErrInvalidConferenceID); err != nil {
		return nil, newServiceError(opSubmitCheckIn, "invalid_conference_id", err)
	}
	if err := validateIdentifier(checkIn.UserID, ErrInvalidUserID); err != nil {
		return nil, newServiceError(opSubmitCheckIn, "invalid_user_id", err)
	}
	status, err := ParseCheckInStatus(string(checkIn.Status))
	if err != nil {
		return nil, newServiceError(opSubmitCheckIn, "invalid_status", err)
	}
	checkIn.Status = status

	now := s.clock()
	if checkIn.CheckInDate == "" {
		checkIn.CheckInDate = DateOf(now)
	}

	var existing DailyCheckIn
	lookupErr := s.db.WithContext(ctx).
		Where("conference_id = ? AND user_id = ? AND check_in_date = ?",
			checkIn.ConferenceID, checkIn.UserID, checkIn.CheckInDate).
		Take(&existing).Error
	isNew := errors.Is(lookupErr, gorm.ErrRecordNotFound)
	if lookupErr != nil && !isNew {
		return nil, newServiceError(opSubmitCheckIn, "lookup_failed", lookupErr)
	}

	if checkIn.ID == "" {
		id, idErr := s.idProvider.NewID()
		if idErr != nil {
			return nil, newServiceError(opSubmitCheckIn, "id_generation_failed", idErr)
		}
		checkIn.ID = id
	}
	checkIn.CreatedAt = now.UTC()
	checkIn.UpdatedAt = now.UTC()

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "conference_id"},
			{Name: "user_id"},
			{Name: "check_in_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"priorities", "location", "status", "updated_at"}),
	}).Create(&checkIn).Error
	if err != nil {
		s.logError(opSubmitCheckIn, "upsert_failed", err, zap.String("conference_id", checkIn.ConferenceID))
		return nil, newServiceError(opSubmitCheckIn, "upsert_failed", err)
	}

	if isNew {
		teamID, teamErr := s.conferenceTeam(ctx, checkIn.ConferenceID)
		if teamErr != nil {
			s.logError(opSubmitCheckIn, "team_lookup_failed", teamErr, zap.String("conference_id", checkIn.ConferenceID))
		}
		if _, recordErr := s.Record(ctx, TeamActivity{
			TeamID:       teamID,
			ConferenceID: checkIn.ConferenceID,
			UserID:       checkIn.UserID,
			ActivityType: TypeCheckIn,
			EntityID:     checkIn.ID,
			Description:  CheckInDescription(checkIn.Priorities),
		}); recordErr != nil {
			return nil, newServiceError(opSubmitCheckIn, "activity_record_failed", recordErr)
		}
		s.publish(realtime.TableCheckIns, checkIn.ConferenceID, checkIn.ID, checkIn.CreatedAt)
	}

	return s.LoadCheckIns(ctx, checkIn.ConferenceID, checkIn.CheckInDate)
}

// GetActivity fetches a single activity with the author display name joined.
// Used by feed consumers to re-fetch a row announced on the change feed.
func (s *Service) GetActivity(ctx context.Context, activityID string) (Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Table("team_activities").
		Select("team_activities.*, team_members.display_name AS user_display_name").
		Joins("LEFT JOIN team_members ON team_members.team_id = team_activities.team_id AND team_members.user_id = team_activities.user_id").
		Where("team_activities.activity_id = ?", activityID).
		Take(&entry).Error
	if err != nil {
		return Entry{}, newServiceError(opGetActivity, "query_failed", err)
	}
	return entry, nil
}

// GetCheckIn fetches a single check-in row by id.
func (s *Service) GetCheckIn(ctx context.Context, checkInID string) (DailyCheckIn, error) {
	var checkIn DailyCheckIn
	err := s.db.WithContext(ctx).
		Where("check_in_id = ?", checkInID).
		Take(&checkIn).Error
	if err != nil {
		return DailyCheckIn{}, newServiceError(opGetCheckIn, "query_failed", err)
	}
	return checkIn, nil
}

func (s *Service) publish(table, conferenceID, rowID string, occurredAt time.Time) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(realtime.Message{
		ConferenceID: conferenceID,
		Table:        table,
		RowID:        rowID,
		OccurredAt:   occurredAt,
	})
}

func (s *Service) conferenceTeam(ctx context.Context, conferenceID string) (string, error) {
	type conferenceRow struct {
		TeamID string `gorm:"column:team_id"`
	}
	var row conferenceRow
	err := s.db.WithContext(ctx).
		Table("conferences").
		Select("team_id").
		Where("conference_id = ?", conferenceID).
		Take(&row).Error
	if err != nil {
		return "", err
	}
	return row.TeamID, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("activity service error", attrs...)
}
