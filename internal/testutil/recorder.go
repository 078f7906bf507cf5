package testutil

import (
	"context"
	"sync"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/usage"
)

// RecordingSink keeps every event it receives.
type RecordingSink struct {
	mu     sync.Mutex
	events []core.Event
}

// Emit implements telemetry.Sink.
func (s *RecordingSink) Emit(_ context.Context, e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns the received events in order.
func (s *RecordingSink) Events() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

// Types returns the received event types in order.
func (s *RecordingSink) Types() []core.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// Last returns the newest event of type typ.
func (s *RecordingSink) Last(typ core.EventType) (core.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == typ {
			return s.events[i], true
		}
	}
	return core.Event{}, false
}

// RecordingLedger keeps every usage record. Err, when set, is returned
// from Record after the record is kept.
type RecordingLedger struct {
	mu      sync.Mutex
	records []usage.Record
	Err     error
}

// Record implements usage.Ledger.
func (l *RecordingLedger) Record(_ context.Context, r usage.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return l.Err
}

// Records returns the received records in order.
func (l *RecordingLedger) Records() []usage.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]usage.Record(nil), l.records...)
}

// Charges returns the charge types in order.
func (l *RecordingLedger) Charges() []usage.ChargeType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]usage.ChargeType, len(l.records))
	for i, r := range l.records {
		out[i] = r.ChargeType
	}
	return out
}
