package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/smarter-sh/smarter-sub001/core"
)

type recordingSink struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recordingSink) Emit(_ context.Context, e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureLogger) add(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, level+" "+msg)
}
func (c *captureLogger) Debug(msg string, _ ...any) { c.add("DEBUG", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("INFO", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("WARN", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("ERROR", msg) }

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, nil, b)
	m.Emit(context.Background(), core.NewEvent(core.EventChatStarted, "r1", "s1"))
	assert.Equal(t, 1, a.len())
	assert.Equal(t, 1, b.len())
}

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	s := NewLogSink(logger)
	s.Emit(context.Background(), core.NewEvent(core.EventChatStarted, "r1", "s1"))
	s.Emit(context.Background(), core.NewEvent(core.EventChatFailed, "r1", "s1").With("status", 429))
	assert.Equal(t, []string{"DEBUG chat.started", "ERROR chat.failed"}, logger.msgs)
}

func TestAsyncSink_Delivers(t *testing.T) {
	rec := &recordingSink{}
	s := NewAsyncSink(rec)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		s.Emit(ctx, core.NewEvent(core.EventToolCalled, "r1", "s1"))
	}
	cancel()
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 5, rec.len(), "cancelling the request does not cancel queued delivery")

	s.Emit(context.Background(), core.NewEvent(core.EventToolCalled, "r1", "s1"))
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestAsyncSink_NeverBlocks(t *testing.T) {
	release := make(chan struct{})
	slow := SinkFunc(func(context.Context, core.Event) { <-release })
	metrics := NewMetrics(nil)
	s := NewAsyncSink(slow, func(o *AsyncOptions) {
		o.BufferSize = 2
		o.Metrics = metrics
	})

	start := time.Now()
	for i := 0; i < 10; i++ {
		s.Emit(context.Background(), core.NewEvent(core.EventToolCalled, "r1", "s1"))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, s.Dropped(), uint64(7))
	assert.Equal(t, float64(s.Dropped()), testutil.ToFloat64(metrics.Dropped.WithLabelValues("sink")))

	close(release)
	require.NoError(t, s.Close(context.Background()))
}

func TestAsyncSink_RecoversPanics(t *testing.T) {
	logger := &captureLogger{}
	rec := &recordingSink{}
	var calls int
	s := NewAsyncSink(SinkFunc(func(ctx context.Context, e core.Event) {
		calls++
		if calls == 1 {
			panic("sink exploded")
		}
		rec.Emit(ctx, e)
	}), func(o *AsyncOptions) { o.Logger = logger })

	s.Emit(context.Background(), core.NewEvent(core.EventChatStarted, "r1", "s1"))
	s.Emit(context.Background(), core.NewEvent(core.EventChatSucceeded, "r1", "s1"))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, 1, rec.len())
	assert.Contains(t, logger.msgs, "ERROR telemetry.sink.panic")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.VendorCall("openai", "gpt-4o", "success", 200*time.Millisecond, 12, 3)
	m.VendorCall("openai", "gpt-4o", "RateLimitError", 50*time.Millisecond, 0, 0)
	m.ToolCall("plugin", "7", "success", time.Millisecond)
	m.Outcome(200, "")
	m.Outcome(429, "RateLimitError")

	expected := `
		# HELP smarter_vendor_calls_total Total number of chat-completion calls by provider, model and status
		# TYPE smarter_vendor_calls_total counter
		smarter_vendor_calls_total{model="gpt-4o",provider="openai",status="RateLimitError"} 1
		smarter_vendor_calls_total{model="gpt-4o",provider="openai",status="success"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(m.VendorCalls, strings.NewReader(expected)))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.Tokens.WithLabelValues("openai", "gpt-4o", "prompt")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Outcomes))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolCalls.WithLabelValues("plugin", "7", "success")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.VendorCall("p", "m", "success", 0, 1, 1)
		nilMetrics.ToolCall("builtin", "x", "success", 0)
		nilMetrics.Outcome(500, "InternalServerError")
		nilMetrics.EventDropped("sink")
	})
}

func TestNewTracer_WithoutEndpoint(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer func() { _ = shutdown(context.Background()) }()
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), SpanChat)
	assert.NotNil(t, span)
	span.End()
}

func TestTracer_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewTracerFromProvider(tp)

	ctx, root := tracer.Start(context.Background(), SpanChat, "session_key", "s1")
	_, child := tracer.Start(ctx, SpanIteration, "iteration", 1, "tools", []string{"a"})
	Finish(child, errors.New("rate limited"))
	SetAttributes(root, "status", 429)
	Finish(root, nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, SpanIteration, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Contains(t, spans[1].Attributes(), attribute.String("session_key", "s1"))
	assert.Contains(t, spans[1].Attributes(), attribute.Int("status", 429))

	var nilTracer *Tracer
	_, span := nilTracer.Start(context.Background(), SpanToolCall)
	assert.False(t, span.SpanContext().IsValid())
}
