package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval = time.Hour
	DefaultTimeout  = time.Minute
)

// Purger deletes credential rows that expired strictly before now.
type Purger interface {
	PurgeExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// Observer is notified after every sweep.
type Observer interface {
	ReaperSweep(purged int64, err error)
}

// Config configures a Reaper.
type Config struct {
	Interval time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
	Now     func() time.Time
}

// Reaper periodically purges expired credentials. Sweep failures and panics
// are logged and swallowed; the next tick retries.
type Reaper struct {
	purger   Purger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
	observer Observer

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns a stopped Reaper. log and observer may be nil.
func New(purger Purger, cfg Config, log *zap.Logger, observer Observer) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		purger:   purger,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		log:      log.Named("reaper"),
		observer: observer,
	}
}

// Start launches the sweep loop. Calling Start on a running Reaper is a
// no-op. The loop ends when ctx is done or Stop is called; either way the
// Reaper can be started again afterwards.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	go r.loop(ctx, r.done)
	r.log.Info("reaper started", zap.Duration("interval", r.interval))
}

// Stop cancels the loop and waits for an in-flight sweep to return. It is
// safe to call repeatedly.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (r *Reaper) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunOnce performs one sweep immediately and returns its result.
func (r *Reaper) RunOnce(ctx context.Context) (purged int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reaper: sweep panicked: %v", rec)
			purged = 0
		}
		if r.observer != nil {
			r.observer.ReaperSweep(purged, err)
		}
	}()
	return r.purger.PurgeExpiredBefore(ctx, r.now())
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer r.exited(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// exited clears the running state if done still belongs to the current run.
func (r *Reaper) exited(done chan struct{}) {
	r.mu.Lock()
	if r.done == done {
		r.running = false
	}
	r.mu.Unlock()
	r.log.Info("reaper stopped")
}

func (r *Reaper) sweep(ctx context.Context) {
	start := time.Now()
	purged, err := r.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("sweep failed", zap.Error(err))
		return
	}
	r.log.Debug("sweep complete", zap.Int64("purged", purged), zap.Duration("took", time.Since(start)))
}
