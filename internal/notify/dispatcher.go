package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"creditflow-backend/internal/domain/event"

	"go.uber.org/zap"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

type job struct {
	ctx  context.Context
	name string
	run  func(ctx context.Context) error
}

// Dispatcher runs side effects on a fixed pool of workers. The queue is
// bounded; when it is full new work is dropped and logged.
type Dispatcher struct {
	jobs    chan job
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(workers, queue int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{jobs: make(chan job, queue), timeout: timeout, log: log}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules fn. The job keeps ctx's values but not its cancellation,
// so it outlives the request that produced it.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notify: dispatcher closed, job dropped", zap.String("job", name))
		return false
	}
	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), name: name, run: fn}:
		return true
	default:
		d.log.Warn("notify: queue full, job dropped", zap.String("job", name))
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notify: job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	if err := j.run(ctx); err != nil {
		d.log.Error("notify: job failed", zap.String("job", j.name), zap.Error(err))
	}
}

// Shutdown stops accepting work and waits for queued jobs to finish or for
// ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

// Emitter hands committed transitions to the Notifier through a Dispatcher.
type Emitter struct {
	dispatcher *Dispatcher
	notifier   *Notifier
}

var _ event.Emitter = (*Emitter)(nil)

func NewEmitter(d *Dispatcher, n *Notifier) *Emitter {
	return &Emitter{dispatcher: d, notifier: n}
}

func (e *Emitter) Emit(ctx context.Context, t event.Transition) {
	e.dispatcher.Enqueue(ctx, t.Action+" "+t.Loan.LoanID, func(ctx context.Context) error {
		return e.notifier.Handle(ctx, t)
	})
}
