package contacts

import "time"

// Contact is a captured conference contact, usually sourced from a badge
// scan or manual entry.
type Contact struct {
	ID           string    `gorm:"column:contact_id;primaryKey"`
	ConferenceID string    `gorm:"column:conference_id;index:idx_contacts_conf"`
	CapturedBy   string    `gorm:"column:captured_by"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Email        string    `gorm:"column:email"`
	Phone        string    `gorm:"column:phone"`
	Company      string    `gorm:"column:company"`
	Title        string    `gorm:"column:title"`
	LinkedInURL  string    `gorm:"column:linkedin_url"`
	Notes        string    `gorm:"column:notes"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// SessionAttendance records that a user sat in on a conference session.
// Attended session titles feed follow-up message prompts.
type SessionAttendance struct {
	ID           string    `gorm:"column:attendance_id;primaryKey"`
	ConferenceID string    `gorm:"column:conference_id;index:idx_attendance_conf"`
	UserID       string    `gorm:"column:user_id"`
	SessionTitle string    `gorm:"column:session_title"`
	AttendedAt   time.Time `gorm:"column:attended_at"`
}

func (SessionAttendance) TableName() string {
	return "session_attendances"
}
