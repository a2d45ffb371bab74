package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
	Debug  bool
}

// InitDB opens the database, migrates the schema and installs the constraints
// that guard appointment scheduling.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "postgres", "":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	logLevel := logger.Warn
	if config.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate auto-migrates every model and, on Postgres, adds the overlap exclusion constraint
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&PatientProfile{},
		&DoctorProfile{},
		&RefreshToken{},
		&Appointment{},
		&SessionRecord{},
		&AppointmentEvent{},
		&VideoRoom{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		if err := applyPostgresConstraints(db); err != nil {
			return fmt.Errorf("apply postgres constraints: %w", err)
		}
	}

	return nil
}

// AppointmentOverlapConstraint is the exclusion constraint name on appointments
const AppointmentOverlapConstraint = "appointments_doctor_no_overlap"

// applyPostgresConstraints installs the storage-level guard against double
// booking: no two SCHEDULED appointments of one doctor may have intersecting
// [scheduled_time, end_time) ranges.
func applyPostgresConstraints(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return err
	}

	return db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + AppointmentOverlapConstraint + `') THEN
				ALTER TABLE appointments ADD CONSTRAINT ` + AppointmentOverlapConstraint + `
					EXCLUDE USING gist (
						doctor_id WITH =,
						tstzrange(scheduled_time, end_time, '[)') WITH &&
					) WHERE (status = 'SCHEDULED');
			END IF;
		END
		$$;
	`).Error
}
