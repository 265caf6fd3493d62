package team

import "time"

// Team groups the sales reps working a set of conferences together.
type Team struct {
	ID        string    `gorm:"column:team_id;primaryKey;size:190;not null"`
	Name      string    `gorm:"column:name;size:320;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Team) TableName() string {
	return "teams"
}

// Member links a user to a team and carries the display fields joined into
// the activity feed.
type Member struct {
	TeamID      string    `gorm:"column:team_id;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	DisplayName string    `gorm:"column:display_name;size:320;not null"`
	Role        string    `gorm:"column:role;size:64;not null;default:'rep'"`
	JoinedAt    time.Time `gorm:"column:joined_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Member) TableName() string {
	return "team_members"
}

// Conference is a time-boxed event scoped under a team; it is the partition
// key for activities, check-ins, contacts, and posts.
type Conference struct {
	ID        string    `gorm:"column:conference_id;primaryKey;size:190;not null"`
	TeamID    string    `gorm:"column:team_id;size:190;not null;index"`
	Name      string    `gorm:"column:name;size:320;not null"`
	Location  string    `gorm:"column:location;size:320"`
	StartsAt  time.Time `gorm:"column:starts_at;not null"`
	EndsAt    time.Time `gorm:"column:ends_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Conference) TableName() string {
	return "conferences"
}
