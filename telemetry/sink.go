package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/logging"
)

// Sink receives lifecycle events. Implementations must be safe to call from
// multiple goroutines and should not block.
type Sink interface {
	Emit(ctx context.Context, e core.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e core.Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e core.Event) { f(ctx, e) }

// NopSink discards all events.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(context.Context, core.Event) {}

// MultiSink fans out events to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

// Emit implements Sink.
func (m *MultiSink) Emit(ctx context.Context, e core.Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, e)
	}
}

// LogSink writes every event to a logger; failures at Error, the rest at
// Debug.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a LogSink. A nil logger discards.
func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logging.OrNoOp(logger)}
}

// Emit implements Sink.
func (s *LogSink) Emit(_ context.Context, e core.Event) {
	args := []any{
		"event_id", e.ID,
		"request_id", e.RequestID,
		"session_key", e.SessionKey,
	}
	if e.Iteration > 0 {
		args = append(args, "iteration", e.Iteration)
	}
	for _, k := range []string{"status", "error_class", "function", "plugin_id", "finish_reason"} {
		if v, ok := e.Payload[k]; ok {
			args = append(args, k, v)
		}
	}
	if e.Type == core.EventChatFailed {
		if v, ok := e.Payload["error"]; ok {
			args = append(args, "error", v)
		}
		s.logger.Error(string(e.Type), args...)
		return
	}
	s.logger.Debug(string(e.Type), args...)
}

// DefaultSinkBuffer is the AsyncSink queue length when none is given.
const DefaultSinkBuffer = 256

// AsyncOptions configure an AsyncSink.
type AsyncOptions struct {
	BufferSize int
	Logger     logging.Logger
	Metrics    *Metrics
}

// AsyncSink delivers events to another sink from a background goroutine.
// Emit never blocks; events arriving while the buffer is full are dropped
// and counted.
type AsyncSink struct {
	next    Sink
	opts    AsyncOptions
	queue   chan queued
	done    chan struct{}
	dropped atomic.Uint64
	closed  bool
	mu      sync.RWMutex
	once    sync.Once
}

type queued struct {
	ctx   context.Context
	event core.Event
}

// NewAsyncSink starts the delivery goroutine. Close releases it.
func NewAsyncSink(next Sink, optFns ...func(o *AsyncOptions)) *AsyncSink {
	opts := AsyncOptions{BufferSize: DefaultSinkBuffer}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultSinkBuffer
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if next == nil {
		next = NopSink{}
	}

	s := &AsyncSink{
		next:  next,
		opts:  opts,
		queue: make(chan queued, opts.BufferSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit implements Sink.
func (s *AsyncSink) Emit(ctx context.Context, e core.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(e, "closed")
		return
	}
	select {
	case s.queue <- queued{ctx: context.WithoutCancel(ctx), event: e}:
	default:
		s.drop(e, "buffer full")
	}
}

// Dropped returns the number of discarded events.
func (s *AsyncSink) Dropped() uint64 { return s.dropped.Load() }

// Close stops accepting events and waits for the queue to drain or ctx to
// end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for q := range s.queue {
		s.deliver(q)
	}
}

func (s *AsyncSink) deliver(q queued) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.Logger.Error("telemetry.sink.panic", "event_type", string(q.event.Type), "recover", r)
		}
	}()
	s.next.Emit(q.ctx, q.event)
}

func (s *AsyncSink) drop(e core.Event, reason string) {
	n := s.dropped.Add(1)
	s.opts.Metrics.EventDropped("sink")
	s.opts.Logger.Warn("telemetry.event.dropped",
		"event_type", string(e.Type),
		"reason", reason,
		"dropped_total", n,
	)
}
