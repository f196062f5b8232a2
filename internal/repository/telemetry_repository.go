package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groundstation/internal/models"

	"gorm.io/gorm"
)

var ErrUnknownField = errors.New("unknown telemetry field")

// TelemetryRepository is the persistence backend of the telemetry log.
// Every ordered read uses recorded_at DESC, id DESC.
type TelemetryRepository interface {
	Create(ctx context.Context, record *models.TelemetryRecord) error
	GetLatest(ctx context.Context, limit int) ([]models.TelemetryRecord, error)
	// GetLatestFieldValue returns the newest non-null value of field, or nil.
	GetLatestFieldValue(ctx context.Context, field models.Field) (*float64, error)
	// GetLatestWithFields returns the newest record where all fields are
	// non-null, or nil.
	GetLatestWithFields(ctx context.Context, fields []models.Field) (*models.TelemetryRecord, error)
	GetByDateRange(ctx context.Context, from, to time.Time) ([]models.TelemetryRecord, error)
	Count(ctx context.Context) (int64, error)
}

type telemetryRepository struct {
	db *gorm.DB
}

func NewTelemetryRepository(db *gorm.DB) TelemetryRepository {
	return &telemetryRepository{db: db}
}

// column validates f against the schema before it is spliced into SQL.
func column(f models.Field) (string, error) {
	for _, known := range models.AllFields {
		if f == known {
			return string(f), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, string(f))
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("recorded_at DESC").Order("id DESC")
}

func (r *telemetryRepository) Create(ctx context.Context, record *models.TelemetryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *telemetryRepository) GetLatest(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	var records []models.TelemetryRecord
	err := newestFirst(r.db.WithContext(ctx)).
		Limit(limit).
		Find(&records).
		Error
	return records, err
}

func (r *telemetryRepository) GetLatestFieldValue(ctx context.Context, field models.Field) (*float64, error) {
	col, err := column(field)
	if err != nil {
		return nil, err
	}

	var values []float64
	err = newestFirst(r.db.WithContext(ctx).Model(&models.TelemetryRecord{})).
		Where(col + " IS NOT NULL").
		Limit(1).
		Pluck(col, &values).
		Error
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return &values[0], nil
}

func (r *telemetryRepository) GetLatestWithFields(ctx context.Context, fields []models.Field) (*models.TelemetryRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.TelemetryRecord{})
	for _, f := range fields {
		col, err := column(f)
		if err != nil {
			return nil, err
		}
		query = query.Where(col + " IS NOT NULL")
	}

	var records []models.TelemetryRecord
	if err := newestFirst(query).Limit(1).Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *telemetryRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]models.TelemetryRecord, error) {
	var records []models.TelemetryRecord
	err := newestFirst(r.db.WithContext(ctx)).
		Where("recorded_at BETWEEN ? AND ?", from, to).
		Find(&records).
		Error
	return records, err
}

func (r *telemetryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TelemetryRecord{}).
		Count(&count).
		Error
	return count, err
}
