package usage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/smarter-sh/smarter-sub001/logging"
)

// DefaultBufferSize is the AsyncLedger queue length when none is given.
const DefaultBufferSize = 256

// AsyncOptions configure an AsyncLedger.
type AsyncOptions struct {
	BufferSize int
	Logger     logging.Logger
	// OnDrop is called for every record that did not fit the buffer.
	OnDrop func(r Record)
}

// AsyncLedger forwards records to another ledger from a background
// goroutine. Record never blocks: when the buffer is full the record is
// dropped and counted.
type AsyncLedger struct {
	next    Ledger
	opts    AsyncOptions
	queue   chan Record
	done    chan struct{}
	dropped atomic.Uint64
	closed  atomic.Bool
	sendMu  sync.RWMutex
	once    sync.Once
}

// NewAsyncLedger starts the forwarding goroutine. Close must be called to
// release it.
func NewAsyncLedger(next Ledger, optFns ...func(o *AsyncOptions)) *AsyncLedger {
	opts := AsyncOptions{BufferSize: DefaultBufferSize, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if next == nil {
		next = NopLedger{}
	}

	l := &AsyncLedger{
		next:  next,
		opts:  opts,
		queue: make(chan Record, opts.BufferSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Record implements Ledger. It only fails after Close.
func (l *AsyncLedger) Record(_ context.Context, r Record) error {
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed.Load() {
		l.drop(r, "closed")
		return ErrClosed
	}
	select {
	case l.queue <- r:
	default:
		l.drop(r, "buffer full")
	}
	return nil
}

// Dropped returns how many records were discarded.
func (l *AsyncLedger) Dropped() uint64 { return l.dropped.Load() }

// Close stops accepting records and waits until the queued ones have been
// forwarded or ctx is done.
func (l *AsyncLedger) Close(ctx context.Context) error {
	l.once.Do(func() {
		l.sendMu.Lock()
		l.closed.Store(true)
		close(l.queue)
		l.sendMu.Unlock()
	})
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *AsyncLedger) run() {
	defer close(l.done)
	for r := range l.queue {
		if err := l.next.Record(context.Background(), r); err != nil {
			l.opts.Logger.Warn("usage.record.failed",
				"charge_type", string(r.ChargeType),
				"reference", r.Reference,
				"error", err.Error(),
			)
		}
	}
}

func (l *AsyncLedger) drop(r Record, reason string) {
	n := l.dropped.Add(1)
	l.opts.Logger.Warn("usage.record.dropped",
		"charge_type", string(r.ChargeType),
		"reason", reason,
		"dropped_total", n,
	)
	if l.opts.OnDrop != nil {
		l.opts.OnDrop(r)
	}
}
