package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Worker interface {
	Name() string
	Start()
	Stop()
}

type Scheduler struct {
	workers     []Worker
	stopped     bool
	started     bool
	mu          sync.RWMutex
	logger      *zap.Logger
	stopTimeout time.Duration
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		workers:     make([]Worker, 0),
		logger:      logger.Named("scheduler"),
		stopTimeout: 10 * time.Second,
	}
}

func (s *Scheduler) AddWorker(worker Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.started {
		return
	}
	s.started = true

	s.logger.Info("starting scheduler", zap.Int("workers", len(s.workers)))

	for _, worker := range s.workers {
		worker.Start()
		s.logger.Info("worker started", zap.String("worker", worker.Name()))
	}
}

// Stop stops every worker and waits for in-flight runs to finish, giving up
// after the stop timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")

	var wg sync.WaitGroup
	for _, worker := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-time.After(s.stopTimeout):
		s.logger.Warn("scheduler stop timeout", zap.Duration("timeout", s.stopTimeout))
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started && !s.stopped
}
