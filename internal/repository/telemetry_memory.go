package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"groundstation/internal/models"
)

type memoryTelemetryRepository struct {
	mu      sync.RWMutex
	records []models.TelemetryRecord
	nextID  uint
}

// NewMemoryTelemetryRepository keeps the log in process memory. Nothing
// survives a restart.
func NewMemoryTelemetryRepository() TelemetryRepository {
	return &memoryTelemetryRepository{nextID: 1}
}

func cloneRecord(rec models.TelemetryRecord) models.TelemetryRecord {
	out := rec
	out.Reading = models.Reading{}
	for _, f := range rec.Present() {
		out.Set(f, *rec.Get(f))
	}
	if rec.RawPayload != nil {
		out.RawPayload = append(out.RawPayload[:0:0], rec.RawPayload...)
	}
	return out
}

// newer orders by recorded_at, then id.
func newer(a, b models.TelemetryRecord) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.After(b.RecordedAt)
	}
	return a.ID > b.ID
}

func (r *memoryTelemetryRepository) Create(ctx context.Context, record *models.TelemetryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.ID = r.nextID
	r.nextID++
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.records = append(r.records, cloneRecord(*record))
	return nil
}

func (r *memoryTelemetryRepository) sorted() []models.TelemetryRecord {
	out := make([]models.TelemetryRecord, len(r.records))
	copy(out, r.records)
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}

func (r *memoryTelemetryRepository) GetLatest(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sorted()
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]models.TelemetryRecord, 0, len(all))
	for _, rec := range all {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (r *memoryTelemetryRepository) GetLatestFieldValue(ctx context.Context, field models.Field) (*float64, error) {
	if _, err := column(field); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.TelemetryRecord
	for i := range r.records {
		rec := &r.records[i]
		if rec.Get(field) == nil {
			continue
		}
		if best == nil || newer(*rec, *best) {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Get(field), nil
}

func (r *memoryTelemetryRepository) GetLatestWithFields(ctx context.Context, fields []models.Field) (*models.TelemetryRecord, error) {
	for _, f := range fields {
		if _, err := column(f); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.TelemetryRecord
	for i := range r.records {
		rec := &r.records[i]
		complete := true
		for _, f := range fields {
			if rec.Get(f) == nil {
				complete = false
				break
			}
		}
		if complete && (best == nil || newer(*rec, *best)) {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	out := cloneRecord(*best)
	return &out, nil
}

func (r *memoryTelemetryRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]models.TelemetryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.TelemetryRecord
	for _, rec := range r.sorted() {
		if rec.RecordedAt.Before(from) || rec.RecordedAt.After(to) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (r *memoryTelemetryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records)), nil
}
