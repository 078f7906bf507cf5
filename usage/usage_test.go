package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLedger_Totals(t *testing.T) {
	l := NewInMemoryLedger()
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Record{Provider: "openai", Model: "gpt-4o", ChargeType: ChargePromptCompletion, PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
	require.NoError(t, l.Record(ctx, Record{Provider: "openai", Model: "gpt-4o", ChargeType: ChargePromptCompletion, PromptTokens: 20, CompletionTokens: 1, TotalTokens: 21}))
	require.NoError(t, l.Record(ctx, Record{Provider: "openai", Model: "gpt-4o", ChargeType: ChargePlugin, Reference: "7"}))

	assert.Len(t, l.Records(), 3)

	totals := l.Totals()
	require.Len(t, totals, 2)
	assert.Equal(t, ChargePlugin, totals[0].ChargeType)
	assert.Equal(t, 1, totals[0].Count)
	assert.Equal(t, ChargePromptCompletion, totals[1].ChargeType)
	assert.Equal(t, 2, totals[1].Count)
	assert.Equal(t, int64(36), totals[1].TotalTokens)
}

func TestAsyncLedger_Forwards(t *testing.T) {
	sink := NewInMemoryLedger()
	l := NewAsyncLedger(sink)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Record(context.Background(), Record{ChargeType: ChargeTool, Reference: "get_current_weather"}))
	}
	require.NoError(t, l.Close(context.Background()))

	assert.Len(t, sink.Records(), 10)
	assert.Zero(t, l.Dropped())
	assert.ErrorIs(t, l.Record(context.Background(), Record{}), ErrClosed)
	assert.Equal(t, uint64(1), l.Dropped())
}

func TestAsyncLedger_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var got []Record
	blocking := LedgerFunc(func(_ context.Context, r Record) error {
		<-release
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		return nil
	})

	var dropped []Record
	l := NewAsyncLedger(blocking, func(o *AsyncOptions) {
		o.BufferSize = 1
		o.OnDrop = func(r Record) { dropped = append(dropped, r) }
	})

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(context.Background(), Record{ChargeType: ChargeTool}))
	}
	assert.Less(t, time.Since(start), time.Second, "Record must not block")

	// At most one record is held by the worker and one by the buffer.
	assert.GreaterOrEqual(t, l.Dropped(), uint64(3))
	assert.Len(t, dropped, int(l.Dropped()))

	close(release)
	require.NoError(t, l.Close(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, len(got)+int(l.Dropped()))
}

func TestAsyncLedger_CloseHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l := NewAsyncLedger(LedgerFunc(func(context.Context, Record) error {
		<-release
		return nil
	}))
	require.NoError(t, l.Record(context.Background(), Record{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Close(ctx), context.DeadlineExceeded)
}

func TestAsyncLedger_DownstreamErrorsAreSwallowed(t *testing.T) {
	var calls int
	l := NewAsyncLedger(LedgerFunc(func(context.Context, Record) error {
		calls++
		return errors.New("ledger offline")
	}))
	require.NoError(t, l.Record(context.Background(), Record{}))
	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, 1, calls)
}
