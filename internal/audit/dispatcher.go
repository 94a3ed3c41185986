package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; overflow is counted by Dropped.
	DropIfFull bool
	// OnDrop, if set, is called with the type of every dropped event.
	OnDrop func(eventType string)
	// Log receives sink panics. Nil discards them.
	Log *zap.Logger
}

// Dispatcher forwards events to a sink from a single goroutine, so a slow
// sink never runs on a request path. A nil *Dispatcher is valid and
// discards everything.
type Dispatcher struct {
	sink   Sink
	log    *zap.Logger
	onDrop func(string)
	drop   bool

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	stopped chan struct{}

	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	d := &Dispatcher{
		sink:    sink,
		log:     cfg.Log.Named("audit"),
		onDrop:  cfg.OnDrop,
		drop:    cfg.DropIfFull,
		queue:   make(chan Event, cfg.BufferSize),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("audit sink panicked", zap.String("event", event.Type), zap.Any("panic", r))
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. It blocks on a full buffer, until ctx is done, unless
// DropIfFull is set. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.drop {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop(event.Type)
			}
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events and returns once everything queued before it
// has reached the sink. Close is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped reports events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
