// Package usage records the token consumption attributable to one chat
// orchestration: one prompt-completion record per vendor call and one tool
// or plugin record per dispatched capability.
//
// Recording is best-effort. The orchestrator never waits for durability and
// a failing ledger never fails a chat; idempotency across caller retries is
// the ledger's concern.
package usage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ChargeType classifies a usage record.
type ChargeType string

const (
	ChargePromptCompletion ChargeType = "prompt_completion"
	ChargeTool             ChargeType = "tool"
	ChargePlugin           ChargeType = "plugin"
)

// Record is one accounting entry.
type Record struct {
	Provider         string     `json:"provider"`
	ChargeType       ChargeType `json:"charge_type"`
	PromptTokens     int64      `json:"prompt_tokens"`
	CompletionTokens int64      `json:"completion_tokens"`
	TotalTokens      int64      `json:"total_tokens"`
	Model            string     `json:"model"`
	// Reference identifies what was charged: the function name for tools,
	// the decimal plugin id for plugins, empty for completions.
	Reference string `json:"reference,omitempty"`

	SessionKey string `json:"session_key,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// Ledger accepts usage records.
type Ledger interface {
	Record(ctx context.Context, r Record) error
}

// LedgerFunc adapts a function to Ledger.
type LedgerFunc func(ctx context.Context, r Record) error

// Record implements Ledger.
func (f LedgerFunc) Record(ctx context.Context, r Record) error { return f(ctx, r) }

// NopLedger discards every record.
type NopLedger struct{}

// Record implements Ledger.
func (NopLedger) Record(context.Context, Record) error { return nil }

// Totals aggregates records sharing a provider, model and charge type.
type Totals struct {
	Provider         string
	Model            string
	ChargeType       ChargeType
	Count            int
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// InMemoryLedger keeps every record and running totals. It is safe for
// concurrent use.
type InMemoryLedger struct {
	mu      sync.Mutex
	records []Record
	totals  map[string]*Totals
}

// NewInMemoryLedger returns an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{totals: make(map[string]*Totals)}
}

// Record implements Ledger.
func (l *InMemoryLedger) Record(_ context.Context, r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)

	key := totalsKey(r.Provider, r.Model, r.ChargeType)
	t, ok := l.totals[key]
	if !ok {
		t = &Totals{Provider: r.Provider, Model: r.Model, ChargeType: r.ChargeType}
		l.totals[key] = t
	}
	t.Count++
	t.PromptTokens += r.PromptTokens
	t.CompletionTokens += r.CompletionTokens
	t.TotalTokens += r.TotalTokens
	return nil
}

// Records returns a copy of every record in arrival order.
func (l *InMemoryLedger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// Totals returns the aggregates sorted by provider:model then charge type.
func (l *InMemoryLedger) Totals() []Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Totals, 0, len(l.totals))
	for _, t := range l.totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		return totalsKey(a.Provider, a.Model, a.ChargeType) < totalsKey(b.Provider, b.Model, b.ChargeType)
	})
	return out
}

func totalsKey(provider, model string, ct ChargeType) string {
	return fmt.Sprintf("%s:%s/%s", provider, model, ct)
}
