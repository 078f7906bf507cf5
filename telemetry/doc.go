// Package telemetry carries the observability side of chat orchestration:
// lifecycle event sinks, Prometheus metrics and OpenTelemetry spans.
//
// Everything here is fire-and-forget from the orchestrator's point of view.
// A slow or failing sink must never hold up or fail a chat, so AsyncSink
// decouples emission from delivery through a bounded, non-blocking queue.
//
// Usage:
//
//	sink := telemetry.NewAsyncSink(telemetry.NewLogSink(logger))
//	defer sink.Close(ctx)
//	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
//	tracer, shutdown := telemetry.NewTracer(telemetry.TraceConfig{Endpoint: "localhost:4317"})
//	defer shutdown(ctx)
package telemetry
