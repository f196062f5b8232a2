package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"groundstation/internal/models"
	"groundstation/internal/parser"
	"groundstation/internal/repository"
	"groundstation/internal/utils"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrWriteFailed       = errors.New("telemetry write failed")
	ErrReadFailed        = errors.New("telemetry read failed")
	ErrNoData            = errors.New("no data found for the specified range")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

const (
	snapshotCacheKey     = "telemetry:snapshot"
	snapshotGenKey       = "telemetry:snapshot:gen"
	ingestCounterPrefix  = "telemetry:ingested:"
	defaultHistoryLimit  = 100
	defaultMaxHistory    = 1000
	maxExportRange       = 30 * 24 * time.Hour
	timestampGranularity = time.Microsecond
)

// Snapshot is the best known value of every field, merged field by field
// from the log. Fields never reported are nil.
type Snapshot struct {
	models.Reading
}

// Orientation is the latest complete gx/gy/gz sample.
type Orientation struct {
	Roll       float64   `json:"roll"`
	Pitch      float64   `json:"pitch"`
	Yaw        float64   `json:"yaw"`
	RecordID   uint      `json:"record_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

type TelemetryStats struct {
	Records  int64            `json:"records"`
	Ingested map[string]int64 `json:"ingested,omitempty"`
}

type TelemetryService interface {
	Append(ctx context.Context, reading models.Reading, source parser.Source, raw []byte) (uint, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
	RecentHistory(ctx context.Context, limit int) ([]models.TelemetryRecord, error)
	LatestOrientation(ctx context.Context) (*Orientation, error)
	WarmSnapshot(ctx context.Context) error
	GetTelemetryHistory(ctx context.Context, from, to time.Time) ([]models.TelemetryRecord, error)
	ExportTelemetry(ctx context.Context, format string, from, to time.Time) (string, error)
	Stats(ctx context.Context) (*TelemetryStats, error)
}

type TelemetryConfig struct {
	OutputDir    string
	HistoryLimit int
	MaxHistory   int
	SnapshotTTL  time.Duration
}

type telemetryService struct {
	repo   repository.TelemetryRepository
	cache  repository.CacheRepository
	cfg    TelemetryConfig
	logger *zap.Logger
	now    func() time.Time

	// mu serialises appends against reads so a reader never observes a
	// record whose snapshot invalidation is still pending.
	mu        sync.RWMutex
	lastStamp time.Time
}

// cachedSnapshot is only served while Version matches the shared generation
// counter, which every append in every process bumps.
type cachedSnapshot struct {
	Version  int64    `json:"version"`
	Snapshot Snapshot `json:"snapshot"`
}

// NewTelemetryService wires the store semantics over a backend. cache may be
// nil, in which case every snapshot is computed from the backend.
func NewTelemetryService(
	repo repository.TelemetryRepository,
	cache repository.CacheRepository,
	cfg TelemetryConfig,
	logger *zap.Logger,
) TelemetryService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	if cfg.HistoryLimit > cfg.MaxHistory {
		cfg.HistoryLimit = cfg.MaxHistory
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./data/telemetry"
	}

	return &telemetryService{
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		logger: logger.Named("telemetry"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// stamp returns the timestamp for a new record. Timestamps never go
// backwards within one process. Caller holds s.mu.
func (s *telemetryService) stamp() time.Time {
	t := s.now().UTC().Truncate(timestampGranularity)
	if !t.After(s.lastStamp) && !s.lastStamp.IsZero() {
		t = s.lastStamp.Add(timestampGranularity)
	}
	s.lastStamp = t
	return t
}

// rawJSON keeps raw as-is when it is already JSON and stores it as a JSON
// string otherwise.
func rawJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	encoded, _ := json.Marshal(string(raw))
	return datatypes.JSON(encoded)
}

func (s *telemetryService) snapshotVersion(ctx context.Context) (int64, error) {
	return s.cache.Counter(ctx, snapshotGenKey)
}

func (s *telemetryService) Append(ctx context.Context, reading models.Reading, source parser.Source, raw []byte) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &models.TelemetryRecord{
		RecordedAt: s.stamp(),
		Source:     string(source),
		Reading:    reading,
		RawPayload: rawJSON(raw),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to append telemetry record",
			zap.String("source", string(source)),
			zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if s.cache != nil {
		if _, err := s.cache.Increment(ctx, snapshotGenKey); err != nil {
			s.logger.Warn("failed to bump snapshot generation", zap.Error(err))
		}
		if err := s.cache.Delete(ctx, snapshotCacheKey); err != nil {
			s.logger.Warn("failed to invalidate snapshot cache", zap.Error(err))
		}
		if _, err := s.cache.Increment(ctx, ingestCounterPrefix+string(source)); err != nil {
			s.logger.Warn("failed to bump ingest counter", zap.Error(err))
		}
	}

	s.logger.Debug("telemetry record appended",
		zap.Uint("id", record.ID),
		zap.String("source", string(source)),
		zap.Int("fields", len(reading.Present())))

	return record.ID, nil
}

// buildSnapshot runs one latest-non-null lookup per field. Caller holds s.mu.
func (s *telemetryService) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	for _, field := range models.AllFields {
		v, err := s.repo.GetLatestFieldValue(ctx, field)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", ErrReadFailed, field, err)
		}
		if v != nil {
			snap.Set(field, *v)
		}
	}
	return snap, nil
}

func (s *telemetryService) cacheSnapshot(ctx context.Context, version int64, snap *Snapshot) {
	entry := cachedSnapshot{Version: version, Snapshot: *snap}
	if err := s.cache.SetJSON(ctx, snapshotCacheKey, entry, s.cfg.SnapshotTTL); err != nil {
		s.logger.Warn("failed to cache snapshot", zap.Error(err))
	}
}

func (s *telemetryService) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cache == nil {
		return s.buildSnapshot(ctx)
	}

	// The generation is read before building, so an append that lands
	// mid-build leaves this entry outdated rather than current.
	version, err := s.snapshotVersion(ctx)
	if err != nil {
		s.logger.Warn("snapshot generation read failed", zap.Error(err))
		return s.buildSnapshot(ctx)
	}

	var cached cachedSnapshot
	err = s.cache.GetJSON(ctx, snapshotCacheKey, &cached)
	switch {
	case err == nil && cached.Version == version:
		return &cached.Snapshot, nil
	case err != nil && !errors.Is(err, repository.ErrCacheMiss):
		s.logger.Warn("snapshot cache read failed", zap.Error(err))
	}

	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, version, snap)
	return snap, nil
}

func (s *telemetryService) WarmSnapshot(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	version, err := s.snapshotVersion(ctx)
	if err != nil {
		return err
	}
	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		return err
	}
	s.cacheSnapshot(ctx, version, snap)
	return nil
}

func (s *telemetryService) RecentHistory(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > s.cfg.MaxHistory {
		limit = s.cfg.MaxHistory
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.repo.GetLatest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if records == nil {
		records = []models.TelemetryRecord{}
	}
	return records, nil
}

func (s *telemetryService) LatestOrientation(ctx context.Context) (*Orientation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.repo.GetLatestWithFields(ctx, models.OrientationFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if record == nil {
		return nil, nil
	}

	return &Orientation{
		Roll:       *record.GX,
		Pitch:      *record.GY,
		Yaw:        *record.GZ,
		RecordID:   record.ID,
		RecordedAt: record.RecordedAt,
	}, nil
}

func (s *telemetryService) GetTelemetryHistory(ctx context.Context, from, to time.Time) ([]models.TelemetryRecord, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if to.Sub(from) > maxExportRange {
		from = to.Add(-maxExportRange)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.repo.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	return records, nil
}

func (s *telemetryService) ExportTelemetry(ctx context.Context, format string, from, to time.Time) (string, error) {
	format = strings.ToLower(format)
	switch format {
	case "csv", "excel", "xlsx", "json":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	records, err := s.GetTelemetryHistory(ctx, from, to)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", ErrNoData
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	timestamp := s.now().Format("20060102_150405")
	var path string

	switch format {
	case "csv":
		path = filepath.Join(s.cfg.OutputDir, fmt.Sprintf("telemetry_export_%s.csv", timestamp))
		err = utils.SaveAsCSV(path, records)
	case "excel", "xlsx":
		path = filepath.Join(s.cfg.OutputDir, fmt.Sprintf("telemetry_export_%s.xlsx", timestamp))
		err = utils.CreateExcelFile(path, records)
	case "json":
		path = filepath.Join(s.cfg.OutputDir, fmt.Sprintf("telemetry_export_%s.json", timestamp))
		err = utils.SaveAsJSON(path, records)
	}
	if err != nil {
		return "", fmt.Errorf("failed to export telemetry: %w", err)
	}

	s.logger.Info("telemetry exported",
		zap.String("format", format),
		zap.String("path", path),
		zap.Int("records", len(records)))

	return path, nil
}

func (s *telemetryService) Stats(ctx context.Context) (*TelemetryStats, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	stats := &TelemetryStats{Records: count}
	if s.cache != nil {
		counters, err := s.cache.Counters(ctx, ingestCounterPrefix+"*")
		if err != nil {
			s.logger.Warn("failed to read ingest counters", zap.Error(err))
		} else {
			stats.Ingested = make(map[string]int64, len(counters))
			for key, n := range counters {
				stats.Ingested[strings.TrimPrefix(key, ingestCounterPrefix)] = n
			}
		}
	}
	return stats, nil
}
