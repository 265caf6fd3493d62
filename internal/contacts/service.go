// Package contacts stores captured conference contacts and session
// attendance. Captures and attendances append to the team activity log.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidEmail indicates a capture with a malformed email address.
	ErrInvalidEmail = errors.New("contacts: invalid email address")
	// ErrInvalidLinkedInURL indicates a capture with a malformed LinkedIn URL.
	ErrInvalidLinkedInURL = errors.New("contacts: invalid linkedin url")
	// ErrContactNotFound indicates the referenced contact does not exist.
	ErrContactNotFound = errors.New("contacts: contact not found")
)

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the contacts service.
type ServiceConfig struct {
	Database   *gorm.DB
	Activity   *activity.Service
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns contacts and session attendance for conferences.
type Service struct {
	db         *gorm.DB
	activity   *activity.Service
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the contacts service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("contacts: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("contacts: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		activity:   cfg.Activity,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Capture validates and stores a new contact, then records a
// contact_captured activity. Validation failures happen before any write.
func (s *Service) Capture(ctx context.Context, contact Contact, teamID string) (Contact, error) {
	if strings.TrimSpace(contact.ConferenceID) == "" || strings.TrimSpace(contact.CapturedBy) == "" {
		return Contact{}, fmt.Errorf("contacts: conference and capturer required")
	}
	if strings.TrimSpace(contact.FirstName) == "" && strings.TrimSpace(contact.LastName) == "" {
		return Contact{}, fmt.Errorf("contacts: a contact name is required")
	}
	if err := validateEmail(contact.Email); err != nil {
		return Contact{}, err
	}
	if err := validateLinkedInURL(contact.LinkedInURL); err != nil {
		return Contact{}, err
	}

	if contact.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return Contact{}, fmt.Errorf("contacts: id generation failed: %w", err)
		}
		contact.ID = id
	}
	contact.CreatedAt = s.clock().UTC()

	if err := s.db.WithContext(ctx).Create(&contact).Error; err != nil {
		return Contact{}, fmt.Errorf("contacts: capture failed: %w", err)
	}

	if s.activity != nil {
		if _, err := s.activity.Record(ctx, activity.TeamActivity{
			TeamID:       teamID,
			ConferenceID: contact.ConferenceID,
			UserID:       contact.CapturedBy,
			ActivityType: activity.TypeContactCaptured,
			EntityID:     contact.ID,
			Description:  contactLabel(contact),
		}); err != nil {
			s.logger.Warn("contact_captured activity record failed",
				zap.String("contact_id", contact.ID),
				zap.Error(err))
		}
	}
	return contact, nil
}

// Get fetches a single contact by id.
func (s *Service) Get(ctx context.Context, contactID string) (Contact, error) {
	var contact Contact
	err := s.db.WithContext(ctx).Where("contact_id = ?", contactID).Take(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Contact{}, ErrContactNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: lookup failed: %w", err)
	}
	return contact, nil
}

// List returns the contacts captured at a conference, newest first.
func (s *Service) List(ctx context.Context, conferenceID string) ([]Contact, error) {
	var captured []Contact
	err := s.db.WithContext(ctx).
		Where("conference_id = ?", conferenceID).
		Order("created_at DESC").
		Find(&captured).Error
	if err != nil {
		return nil, fmt.Errorf("contacts: list failed: %w", err)
	}
	return captured, nil
}

// Attend records session attendance and a session_attended activity.
func (s *Service) Attend(ctx context.Context, attendance SessionAttendance, teamID string) (SessionAttendance, error) {
	if strings.TrimSpace(attendance.ConferenceID) == "" || strings.TrimSpace(attendance.UserID) == "" {
		return SessionAttendance{}, fmt.Errorf("contacts: conference and user required")
	}
	if strings.TrimSpace(attendance.SessionTitle) == "" {
		return SessionAttendance{}, fmt.Errorf("contacts: session title required")
	}

	if attendance.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return SessionAttendance{}, fmt.Errorf("contacts: id generation failed: %w", err)
		}
		attendance.ID = id
	}
	if attendance.AttendedAt.IsZero() {
		attendance.AttendedAt = s.clock().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&attendance).Error; err != nil {
		return SessionAttendance{}, fmt.Errorf("contacts: attend failed: %w", err)
	}

	if s.activity != nil {
		if _, err := s.activity.Record(ctx, activity.TeamActivity{
			TeamID:       teamID,
			ConferenceID: attendance.ConferenceID,
			UserID:       attendance.UserID,
			ActivityType: activity.TypeSessionAttended,
			EntityID:     attendance.ID,
			Description:  attendance.SessionTitle,
		}); err != nil {
			s.logger.Warn("session_attended activity record failed",
				zap.String("attendance_id", attendance.ID),
				zap.Error(err))
		}
	}
	return attendance, nil
}

// AttendedSessions returns the titles of sessions a user attended at a
// conference, oldest first. Feeds follow-up message prompts.
func (s *Service) AttendedSessions(ctx context.Context, conferenceID, userID string) ([]string, error) {
	var rows []SessionAttendance
	err := s.db.WithContext(ctx).
		Where("conference_id = ? AND user_id = ?", conferenceID, userID).
		Order("attended_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("contacts: attended sessions lookup failed: %w", err)
	}
	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		titles = append(titles, row.SessionTitle)
	}
	return titles, nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func validateLinkedInURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidLinkedInURL
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return ErrInvalidLinkedInURL
	}
	host := strings.ToLower(parsed.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return ErrInvalidLinkedInURL
	}
	return nil
}

func contactLabel(contact Contact) string {
	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	if contact.Company == "" {
		return name
	}
	return name + " (" + contact.Company + ")"
}
