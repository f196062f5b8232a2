package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"groundstation/internal/models"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, TelemetryRepository) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return mock, NewTelemetryRepository(db)
}

func ptr(v float64) *float64 { return &v }

func TestTelemetryRepository_Create(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO "telemetry_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	record := &models.TelemetryRecord{
		RecordedAt: time.Now().UTC(),
		Source:     "gps",
		Reading:    models.Reading{Latitude: ptr(1), Longitude: ptr(2)},
	}
	err := repo.Create(context.Background(), record)

	require.NoError(t, err)
	assert.Equal(t, uint(7), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_CreateError(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO "telemetry_records"`).
		WillReturnError(errors.New("disk full"))

	err := repo.Create(context.Background(), &models.TelemetryRecord{RecordedAt: time.Now(), Source: "lora"})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_GetLatestFieldValue(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "telemetry_records" WHERE humidity IS NOT NULL ORDER BY recorded_at DESC,\s*id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"humidity"}).AddRow(55.5))

	v, err := repo.GetLatestFieldValue(context.Background(), models.FieldHumidity)

	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 55.5, *v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_GetLatestFieldValue_NoRows(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "telemetry_records" WHERE pressure IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"pressure"}))

	v, err := repo.GetLatestFieldValue(context.Background(), models.FieldPressure)

	require.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_RejectsUnknownField(t *testing.T) {
	mock, repo := setupMockDB(t)

	_, err := repo.GetLatestFieldValue(context.Background(), models.Field("1=1; DROP TABLE x"))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = repo.GetLatestWithFields(context.Background(), []models.Field{models.FieldGX, "voltage"})
	assert.ErrorIs(t, err, ErrUnknownField)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_GetLatestWithFields(t *testing.T) {
	mock, repo := setupMockDB(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "recorded_at", "source", "gx", "gy", "gz", "temperature"}).
		AddRow(3, now, "lora", 1.5, -2.5, 90.0, nil)

	mock.ExpectQuery(`SELECT \* FROM "telemetry_records" WHERE gx IS NOT NULL AND gy IS NOT NULL AND gz IS NOT NULL ORDER BY recorded_at DESC,\s*id DESC LIMIT`).
		WillReturnRows(rows)

	rec, err := repo.GetLatestWithFields(context.Background(), models.OrientationFields)

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, uint(3), rec.ID)
	assert.Equal(t, 1.5, *rec.GX)
	assert.Equal(t, -2.5, *rec.GY)
	assert.Equal(t, 90.0, *rec.GZ)
	assert.Nil(t, rec.Temperature)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_GetLatest(t *testing.T) {
	mock, repo := setupMockDB(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "recorded_at", "source", "temperature", "humidity"}).
		AddRow(2, now, "gps", 0.0, nil).
		AddRow(1, now.Add(-time.Second), "lora", 21.0, nil)

	mock.ExpectQuery(`SELECT \* FROM "telemetry_records" ORDER BY recorded_at DESC,\s*id DESC LIMIT`).
		WillReturnRows(rows)

	records, err := repo.GetLatest(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint(2), records[0].ID)
	assert.Nil(t, records[0].Humidity)
	assert.Equal(t, 21.0, *records[1].Temperature)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTelemetryRepository_Count(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "telemetry_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
