package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"groundstation/internal/models"
	"groundstation/internal/parser"
	"groundstation/internal/service"

	"go.uber.org/zap"
)

type valueRange struct{ min, max float64 }

// simulatorRanges mirror what the bench receiver reports.
var simulatorRanges = map[models.Field]valueRange{
	models.FieldTemperature: {15, 35},
	models.FieldPressure:    {900, 1100},
	models.FieldAX:          {-1, 1},
	models.FieldAY:          {-1, 1},
	models.FieldAZ:          {-1, 1},
	models.FieldGX:          {-90, 90},
	models.FieldGY:          {-180, 180},
	models.FieldGZ:          {-180, 180},
	models.FieldMX:          {-0.5, 0.5},
	models.FieldMY:          {-0.5, 0.5},
	models.FieldMZ:          {-0.5, 0.5},
}

// Simulator produces LoRa receiver lines for bench testing without
// hardware.
type Simulator struct {
	ingest service.IngestService
	logger *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulator(ingest service.IngestService, seed int64, logger *zap.Logger) *Simulator {
	return &Simulator{
		ingest: ingest,
		logger: logger.Named("simulator"),
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// Line returns one random reading in the receiver's line format.
func (s *Simulator) Line() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reading models.Reading
	for _, field := range models.AllFields {
		if r, ok := simulatorRanges[field]; ok {
			reading.Set(field, r.min+s.rnd.Float64()*(r.max-r.min))
		}
	}
	return parser.FormatDelimited(reading, 2)
}

// Tick sends one generated line through ingestion.
func (s *Simulator) Tick(ctx context.Context) error {
	line := s.Line()
	id, err := s.ingest.Ingest(ctx, parser.SourceSimulator, []byte(line))
	if err != nil {
		return err
	}
	s.logger.Debug("simulated reading stored", zap.Uint("id", id), zap.String("line", line))
	return nil
}

func NewSimulatorWorker(sim *Simulator, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return NewPeriodicWorker("simulator_worker", interval, sim.Tick, logger)
}
