// Package tasks runs best-effort side effects on a bounded pool of workers.
package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/logger"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultAttempts    = 3
	defaultTimeout     = 5 * time.Second
	defaultBaseBackoff = 100 * time.Millisecond
	defaultMaxBackoff  = 2 * time.Second
	jitterWindow       = 50 * time.Millisecond
)

// Func is a unit of work. Returning a non-retryable pkg/errors code stops retries.
type Func func(ctx context.Context) error

// FailureHook observes tasks that exhausted their attempts.
type FailureHook func(name string, err error)

// Options tunes the runner. Zero values fall back to defaults.
type Options struct {
	Workers     int
	QueueSize   int
	Attempts    int
	Timeout     time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	OnFailure   FailureHook
}

type job struct {
	ctx  context.Context
	name string
	fn   Func
}

// Runner executes submitted tasks asynchronously with per-task timeouts and
// retry with backoff.
type Runner struct {
	opts  Options
	logg  *logger.Logger
	queue chan job
	wg    sync.WaitGroup
	mu    sync.RWMutex
	done  bool
	sleep func(time.Duration)
}

// NewRunner starts the worker goroutines.
func NewRunner(opts Options, logg *logger.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.MaxBackoff < opts.BaseBackoff {
		opts.MaxBackoff = defaultMaxBackoff
	}

	r := &Runner{
		opts:  opts,
		logg:  logg,
		queue: make(chan job, opts.QueueSize),
		sleep: time.Sleep,
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit enqueues fn. The task keeps the values of ctx but not its
// cancellation, so it outlives the request that produced it. When the queue is
// full or the runner is shut down the task runs inline.
func (r *Runner) Submit(ctx context.Context, name string, fn Func) {
	if fn == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	j := job{ctx: context.WithoutCancel(ctx), name: name, fn: fn}

	r.mu.RLock()
	if !r.done {
		select {
		case r.queue <- j:
			r.mu.RUnlock()
			return
		default:
		}
	}
	r.mu.RUnlock()

	if r.logg != nil {
		r.logg.Warn(ctx, fmt.Sprintf("task queue unavailable, running %s inline", name))
	}
	r.execute(j)
}

// Shutdown stops accepting work and waits for queued tasks to finish or ctx
// to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.done {
		r.done = true
		close(r.queue)
	}
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task drain interrupted: %w", ctx.Err())
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.execute(j)
	}
}

func (r *Runner) execute(j job) {
	var err error
	backoff := r.opts.BaseBackoff
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		err = r.attempt(j)
		if err == nil {
			return
		}
		if !pkgerrors.IsRetryable(err) || attempt == r.opts.Attempts {
			break
		}
		if r.logg != nil {
			r.logg.Warn(j.ctx, fmt.Sprintf("task %s attempt %d failed: %v", j.name, attempt, err))
		}
		r.sleep(withJitter(backoff))
		backoff = nextBackoff(backoff, r.opts.BaseBackoff, r.opts.MaxBackoff)
	}

	if r.logg != nil {
		r.logg.Error(j.ctx, fmt.Sprintf("task %s failed", j.name), err)
	}
	if r.opts.OnFailure != nil {
		r.opts.OnFailure(j.name, err)
	}
}

func (r *Runner) attempt(j job) (err error) {
	ctx, cancel := context.WithTimeout(j.ctx, r.opts.Timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("task panicked: %v", rec))
		}
	}()
	return j.fn(ctx)
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(jitterWindow)))
}
