package service

import (
	"context"
	"errors"

	"groundstation/internal/parser"

	"go.uber.org/zap"
)

// IngestService is the single entry point for device payloads, whatever the
// transport. A payload is either parsed and appended as one record, or
// rejected with nothing written.
type IngestService interface {
	Ingest(ctx context.Context, source parser.Source, payload []byte) (uint, error)
	Mode() parser.Mode
}

type ingestService struct {
	store  TelemetryService
	mode   parser.Mode
	logger *zap.Logger
}

func NewIngestService(store TelemetryService, mode parser.Mode, logger *zap.Logger) IngestService {
	return &ingestService{
		store:  store,
		mode:   mode,
		logger: logger.Named("ingest"),
	}
}

// IsRejected reports whether err is a payload problem rather than a storage
// failure.
func IsRejected(err error) bool {
	return errors.Is(err, parser.ErrMalformedPayload) ||
		errors.Is(err, parser.ErrInvalidNumeric) ||
		errors.Is(err, parser.ErrUnknownSource)
}

func (s *ingestService) Mode() parser.Mode { return s.mode }

func (s *ingestService) Ingest(ctx context.Context, source parser.Source, payload []byte) (uint, error) {
	reading, err := parser.Parse(source, payload, s.mode)
	if err != nil {
		s.logger.Info("payload rejected",
			zap.String("source", string(source)),
			zap.String("mode", s.mode.String()),
			zap.Error(err))
		return 0, err
	}

	return s.store.Append(ctx, reading, source, payload)
}
