package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type legacyCheckIn struct {
	ID           string    `gorm:"column:check_in_id;primaryKey"`
	ConferenceID string    `gorm:"column:conference_id"`
	UserID       string    `gorm:"column:user_id"`
	CheckInDate  string    `gorm:"column:check_in_date"`
	Priorities   string    `gorm:"column:priorities"`
	Status       string    `gorm:"column:status"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (legacyCheckIn) TableName() string {
	return "daily_check_ins"
}

func TestApplyMigrationsDeduplicatesCheckIns(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	// the duplicate rows predate the unique index, so the legacy shape is
	// created without it.
	if err := database.AutoMigrate(&legacyCheckIn{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	base := time.Unix(1700000000, 0).UTC()
	rows := []legacyCheckIn{
		{ID: "ci-1", ConferenceID: "conf-1", UserID: "user-a", CheckInDate: "2026-08-20", Priorities: "old", Status: "available", CreatedAt: base, UpdatedAt: base},
		{ID: "ci-2", ConferenceID: "conf-1", UserID: "user-a", CheckInDate: "2026-08-20", Priorities: "new", Status: "busy", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{ID: "ci-3", ConferenceID: "conf-1", UserID: "user-b", CheckInDate: "2026-08-20", Priorities: "keep", Status: "available", CreatedAt: base, UpdatedAt: base},
	}
	for index := range rows {
		if err := database.Create(&rows[index]).Error; err != nil {
			testContext.Fatalf("failed to insert check-in: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var remaining []legacyCheckIn
	if err := database.Order("check_in_id ASC").Find(&remaining).Error; err != nil {
		testContext.Fatalf("failed to reload check-ins: %v", err)
	}
	if len(remaining) != 2 {
		testContext.Fatalf("expected two surviving rows, got %d", len(remaining))
	}
	if remaining[0].ID != "ci-2" || remaining[0].Priorities != "new" {
		testContext.Fatalf("expected the newest duplicate to survive, got %#v", remaining[0])
	}
	if remaining[1].ID != "ci-3" {
		testContext.Fatalf("expected unrelated row untouched, got %#v", remaining[1])
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationDedupeDailyCheckIns).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsIsIdempotent(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&activity.DailyCheckIn{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("first apply failed: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second apply failed: %v", err)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected a single migration record, got %d", count)
	}
}

func TestOpenSQLiteInitializesSchema(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "compass.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	for _, table := range []string{"team_activities", "daily_check_ins", "posts", "post_engagements", "contacts", "session_attendances", "teams", "team_members", "conferences", "user_identities", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open("oracle", "", "", zap.NewNop()); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
}
