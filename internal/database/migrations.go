package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDedupeDailyCheckIns = "2026-08-20_dedupe_daily_check_ins"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDedupeDailyCheckIns, apply: dedupeDailyCheckIns},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// dedupeDailyCheckIns keeps the newest check-in per (conference, user, date)
// so the unique index can be created over data written before the
// constraint existed.
func dedupeDailyCheckIns(db *gorm.DB) error {
	if !db.Migrator().HasTable("daily_check_ins") {
		return nil
	}
	return db.Exec(`DELETE FROM daily_check_ins WHERE EXISTS (
		SELECT 1 FROM daily_check_ins AS newer
		WHERE newer.conference_id = daily_check_ins.conference_id
		  AND newer.user_id = daily_check_ins.user_id
		  AND newer.check_in_date = daily_check_ins.check_in_date
		  AND (newer.updated_at > daily_check_ins.updated_at
		       OR (newer.updated_at = daily_check_ins.updated_at
		           AND newer.check_in_id > daily_check_ins.check_in_id))
	)`).Error
}
