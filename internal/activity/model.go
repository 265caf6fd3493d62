package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type enumerates the recorded activity kinds.
type Type string

const (
	TypeContactCaptured Type = "contact_captured"
	TypeSessionAttended Type = "session_attended"
	TypePostPublished   Type = "post_published"
	TypePostEngaged     Type = "post_engaged"
	TypeCheckIn         Type = "check_in"
)

// CheckInStatus enumerates the declared availability states.
type CheckInStatus string

const (
	CheckInStatusAvailable CheckInStatus = "available"
	CheckInStatusBusy      CheckInStatus = "busy"
	CheckInStatusInSession CheckInStatus = "in_session"
)

// DateLayout is the calendar-date format used for check-in scoping.
const DateLayout = "2006-01-02"

const (
	maxIdentifierLength      = 190
	checkInDescriptionLength = 50
)

var (
	// ErrInvalidConferenceID indicates a conference identifier is empty or exceeds storage bounds.
	ErrInvalidConferenceID = errors.New("activity: invalid conference id")
	// ErrInvalidUserID indicates a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("activity: invalid user id")
	// ErrInvalidActivityType indicates an unknown activity type.
	ErrInvalidActivityType = errors.New("activity: invalid activity type")
	// ErrInvalidCheckInStatus indicates an unknown check-in status.
	ErrInvalidCheckInStatus = errors.New("activity: invalid check-in status")
)

// ParseType validates a raw activity type value.
func ParseType(raw string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeContactCaptured:
		return TypeContactCaptured, nil
	case TypeSessionAttended:
		return TypeSessionAttended, nil
	case TypePostPublished:
		return TypePostPublished, nil
	case TypePostEngaged:
		return TypePostEngaged, nil
	case TypeCheckIn:
		return TypeCheckIn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidActivityType, raw)
	}
}

// ParseCheckInStatus validates a raw check-in status value.
func ParseCheckInStatus(raw string) (CheckInStatus, error) {
	switch CheckInStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case CheckInStatusAvailable:
		return CheckInStatusAvailable, nil
	case CheckInStatusBusy:
		return CheckInStatusBusy, nil
	case CheckInStatusInSession:
		return CheckInStatusInSession, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCheckInStatus, raw)
	}
}

// DateOf formats the calendar date for a point in time, in that time's location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// TeamActivity is an immutable, append-only log entry describing a notable
// user action. Rows are never updated or deleted.
type TeamActivity struct {
	ID           string    `gorm:"column:activity_id;primaryKey;size:190;not null"`
	TeamID       string    `gorm:"column:team_id;size:190;not null"`
	ConferenceID string    `gorm:"column:conference_id;size:190;not null;index:idx_activities_conf_created,priority:1"`
	UserID       string    `gorm:"column:user_id;size:190;not null"`
	ActivityType Type      `gorm:"column:activity_type;size:32;not null"`
	EntityID     string    `gorm:"column:entity_id;size:190"`
	Description  string    `gorm:"column:description;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_activities_conf_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (TeamActivity) TableName() string {
	return "team_activities"
}

// DailyCheckIn is the once-per-day-per-user status declaration for a
// conference. Uniqueness on (conference, user, date) is enforced by the
// schema so concurrent submissions collapse into one row.
type DailyCheckIn struct {
	ID           string        `gorm:"column:check_in_id;primaryKey;size:190;not null"`
	ConferenceID string        `gorm:"column:conference_id;size:190;not null;uniqueIndex:idx_checkins_conf_user_date,priority:1"`
	UserID       string        `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_checkins_conf_user_date,priority:2"`
	CheckInDate  string        `gorm:"column:check_in_date;size:10;not null;uniqueIndex:idx_checkins_conf_user_date,priority:3"`
	Priorities   string        `gorm:"column:priorities;type:text"`
	Location     string        `gorm:"column:location;size:320"`
	Status       CheckInStatus `gorm:"column:status;size:16;not null;default:'available'"`
	CreatedAt    time.Time     `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time     `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DailyCheckIn) TableName() string {
	return "daily_check_ins"
}

// Entry is a feed row: the activity joined with the author's display name.
type Entry struct {
	TeamActivity
	UserDisplayName string `gorm:"column:user_display_name"`
}

// CheckInDescription derives the activity description recorded alongside a
// new check-in: the first 50 characters of the priorities field.
func CheckInDescription(priorities string) string {
	trimmed := strings.TrimSpace(priorities)
	if trimmed == "" {
		return "checked in"
	}
	runes := []rune(trimmed)
	if len(runes) <= checkInDescriptionLength {
		return trimmed
	}
	return string(runes[:checkInDescriptionLength])
}

func validateIdentifier(value string, sentinel error) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return nil
}
