package activity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/team"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("row-%d", p.next), nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, dispatcher *realtime.Dispatcher, clock *testClock) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&TeamActivity{}, &DailyCheckIn{}, &team.Member{}, &team.Conference{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Dispatcher: dispatcher,
		Clock:      clock.Now,
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func seedConference(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Create(&team.Conference{
		ID:       "conf-1",
		TeamID:   "team-1",
		Name:     "BioPharm West",
		StartsAt: time.Unix(1700000000, 0),
		EndsAt:   time.Unix(1700400000, 0),
	}).Error; err != nil {
		t.Fatalf("failed to seed conference: %v", err)
	}
	if err := db.Create(&team.Member{
		TeamID:      "team-1",
		UserID:      "user-a",
		DisplayName: "Ada Vargas",
	}).Error; err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
}

func TestRecordInsertsAndPublishes(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, db := newTestService(t, dispatcher, clock)
	seedConference(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, cleanup := dispatcher.Subscribe(ctx, "conf-1")
	defer cleanup()

	recorded, err := service.Record(context.Background(), TeamActivity{
		TeamID:       "team-1",
		ConferenceID: "conf-1",
		UserID:       "user-a",
		ActivityType: TypeContactCaptured,
		Description:  "Captured Jane Doe",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if recorded.ID == "" {
		t.Fatalf("expected generated activity id")
	}

	select {
	case msg := <-stream:
		if msg.Table != realtime.TableActivities {
			t.Fatalf("unexpected table %s", msg.Table)
		}
		if msg.RowID != recorded.ID {
			t.Fatalf("unexpected row id %s", msg.RowID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected change-feed message for recorded activity")
	}
}

func TestRecordRejectsUnknownType(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, _ := newTestService(t, dispatcher, clock)

	_, err := service.Record(context.Background(), TeamActivity{
		ConferenceID: "conf-1",
		UserID:       "user-a",
		ActivityType: "badge_scanned",
	})
	if err == nil {
		t.Fatalf("expected error for unknown activity type")
	}
}

func TestLoadActivitiesNewestFirstWithDisplayName(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, db := newTestService(t, dispatcher, clock)
	seedConference(t, db)

	for i := 0; i < 3; i++ {
		if _, err := service.Record(context.Background(), TeamActivity{
			TeamID:       "team-1",
			ConferenceID: "conf-1",
			UserID:       "user-a",
			ActivityType: TypeSessionAttended,
			Description:  fmt.Sprintf("session %d", i),
		}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
		clock.Advance(time.Minute)
	}

	entries, err := service.LoadActivities(context.Background(), "conf-1", 50)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Description != "session 2" {
		t.Fatalf("expected newest first, got %q", entries[0].Description)
	}
	if entries[0].UserDisplayName != "Ada Vargas" {
		t.Fatalf("expected joined display name, got %q", entries[0].UserDisplayName)
	}
}

func TestLoadActivitiesHonorsLimit(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, db := newTestService(t, dispatcher, clock)
	seedConference(t, db)

	for i := 0; i < 5; i++ {
		if _, err := service.Record(context.Background(), TeamActivity{
			TeamID:       "team-1",
			ConferenceID: "conf-1",
			UserID:       "user-a",
			ActivityType: TypePostPublished,
			Description:  fmt.Sprintf("post %d", i),
		}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
		clock.Advance(time.Second)
	}

	entries, err := service.LoadActivities(context.Background(), "conf-1", 2)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit to apply, got %d entries", len(entries))
	}
}

func TestSubmitCheckInRecordsActivityOnlyOnce(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, db := newTestService(t, dispatcher, clock)
	seedConference(t, db)

	first, err := service.SubmitCheckIn(context.Background(), DailyCheckIn{
		ConferenceID: "conf-1",
		UserID:       "user-a",
		Priorities:   "Meet the Acme team at booth 14 and confirm the demo slot for tomorrow",
		Status:       CheckInStatusAvailable,
	})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one check-in, got %d", len(first))
	}

	clock.Advance(2 * time.Hour)
	second, err := service.SubmitCheckIn(context.Background(), DailyCheckIn{
		ConferenceID: "conf-1",
		UserID:       "user-a",
		Priorities:   "Booth duty",
		Status:       CheckInStatusBusy,
	})
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected same-day submit to update in place, got %d rows", len(second))
	}
	if second[0].Status != CheckInStatusBusy {
		t.Fatalf("expected updated status, got %s", second[0].Status)
	}
	if second[0].Priorities != "Booth duty" {
		t.Fatalf("expected updated priorities, got %q", second[0].Priorities)
	}

	var activityCount int64
	if err := db.Model(&TeamActivity{}).
		Where("activity_type = ?", TypeCheckIn).
		Count(&activityCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if activityCount != 1 {
		t.Fatalf("expected exactly one check_in activity across both submits, got %d", activityCount)
	}

	var recorded TeamActivity
	if err := db.Where("activity_type = ?", TypeCheckIn).Take(&recorded).Error; err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len([]rune(recorded.Description)) > 50 {
		t.Fatalf("expected description truncated to 50 characters, got %d", len([]rune(recorded.Description)))
	}
}

func TestSubmitCheckInRejectsUnknownStatus(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, db := newTestService(t, dispatcher, clock)
	seedConference(t, db)

	_, err := service.SubmitCheckIn(context.Background(), DailyCheckIn{
		ConferenceID: "conf-1",
		UserID:       "user-a",
		Status:       "asleep",
	})
	if err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestLoadCheckInsScopedToDate(t *testing.T) {
	dispatcher := realtime.NewDispatcher()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	service, db := newTestService(t, dispatcher, clock)
	seedConference(t, db)

	if _, err := service.SubmitCheckIn(context.Background(), DailyCheckIn{
		ConferenceID: "conf-1",
		UserID:       "user-a",
		Status:       CheckInStatusAvailable,
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	clock.Advance(24 * time.Hour)
	if _, err := service.SubmitCheckIn(context.Background(), DailyCheckIn{
		ConferenceID: "conf-1",
		UserID:       "user-a",
		Status:       CheckInStatusInSession,
	}); err != nil {
		t.Fatalf("next-day submit failed: %v", err)
	}

	today := DateOf(clock.Now())
	checkIns, err := service.LoadCheckIns(context.Background(), "conf-1", today)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(checkIns) != 1 {
		t.Fatalf("expected one check-in for %s, got %d", today, len(checkIns))
	}
	if checkIns[0].CheckInDate != today {
		t.Fatalf("expected date %s, got %s", today, checkIns[0].CheckInDate)
	}
}

func TestCheckInDescriptionTruncation(t *testing.T) {
	long := "0123456789012345678901234567890123456789012345678901234567890"
	if got := CheckInDescription(long); len([]rune(got)) != 50 {
		t.Fatalf("expected 50 characters, got %d", len([]rune(got)))
	}
	if got := CheckInDescription("  short  "); got != "short" {
		t.Fatalf("expected trimmed priorities, got %q", got)
	}
	if got := CheckInDescription(""); got != "checked in" {
		t.Fatalf("expected fallback description, got %q", got)
	}
}
