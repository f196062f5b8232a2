package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// PeriodicWorker runs a task on a fixed interval until stopped. A run that
// is still going when Stop is called sees its context cancelled.
type PeriodicWorker struct {
	name       string
	interval   time.Duration
	timeout    time.Duration
	task       Task
	runAtStart bool
	logger     *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	runs     int
	failures int
}

func NewPeriodicWorker(name string, interval time.Duration, task Task, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		name:       name,
		interval:   interval,
		timeout:    30 * time.Second,
		task:       task,
		runAtStart: true,
		logger:     logger.Named(name),
	}
}

func (w *PeriodicWorker) Name() string { return w.name }

func (w *PeriodicWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Info("worker started", zap.Duration("interval", w.interval))
	go w.run(ctx, w.done)
}

func (w *PeriodicWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("worker stopped")
}

func (w *PeriodicWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.runAtStart {
		w.execute(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.execute(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *PeriodicWorker) execute(parent context.Context) {
	if parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	err := w.task(ctx)

	w.mu.Lock()
	w.runs++
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("worker run failed", zap.Error(err))
	}
}

// Runs returns how many runs finished and how many of them failed.
func (w *PeriodicWorker) Runs() (runs, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.failures
}
