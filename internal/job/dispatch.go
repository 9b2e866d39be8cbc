package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RunFunc executes one job, normally Engine.Run.
type RunFunc func(ctx context.Context, jobID string) error

// InlineDispatcher runs jobs on a fixed pool of goroutines in this process.
// Dispatch never blocks: a full queue is reported as ErrQueueFull.
type InlineDispatcher struct {
	run     RunFunc
	jobs    chan string
	workers int
	log     *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewInlineDispatcher(run RunFunc, workers, queueSize int, log *zerolog.Logger) *InlineDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &InlineDispatcher{run: run, jobs: make(chan string, queueSize), workers: workers, log: log}
}

// Start launches the workers. ctx is passed to every run; cancelling it
// aborts in-flight provider calls.
func (d *InlineDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			for id := range d.jobs {
				start := time.Now()
				if err := d.run(ctx, id); err != nil {
					d.log.Error().Err(err).Int("worker", workerID).Str("job_id", id).
						Dur("cost", time.Since(start)).Msg("job run failed")
				}
			}
		}(i)
	}
	d.log.Info().Int("workers", d.workers).Int("queue", cap(d.jobs)).Msg("inline dispatcher started")
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, jobID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("dispatcher stopped")
	}
	select {
	case d.jobs <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued ones to be processed.
func (d *InlineDispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}
