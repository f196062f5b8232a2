package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"groundstation/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// datetimePrecision keeps mysql DATETIME columns at microseconds, the
// granularity record timestamps are truncated to.
var datetimePrecision = 6

type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// Dialector builds the gorm dialector for cfg.Driver.
func Dialector(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		)
		return mysql.New(mysql.Config{
			DSN:                      dsn,
			DefaultDatetimePrecision: &datetimePrecision,
		}), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
}

func Connect(cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connected",
		zap.String("driver", db.Dialector.Name()),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName))
	return db, nil
}

// partialIndexName is the per-field index serving latest-value lookups.
func partialIndexName(f models.Field) string {
	return "idx_telemetry_latest_" + string(f)
}

// Migrate creates the telemetry table. On postgres it also adds one partial
// index per field so the snapshot query never scans rows where the field is
// null.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&models.TelemetryRecord{}); err != nil {
		return fmt.Errorf("failed to migrate telemetry table: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		log.Info("database migrated", zap.String("driver", db.Dialector.Name()))
		return nil
	}

	table := models.TelemetryRecord{}.TableName()
	for _, f := range models.AllFields {
		stmt := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s (recorded_at DESC, id DESC) WHERE %s IS NOT NULL",
			partialIndexName(f), table, string(f),
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index for %s: %w", f, err)
		}
	}

	log.Info("database migrated",
		zap.String("driver", "postgres"),
		zap.Int("partial_indexes", len(models.AllFields)))
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
