package orchestrator

import (
	"time"

	"github.com/smarter-sh/smarter-sub001/logging"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/session"
	"github.com/smarter-sh/smarter-sub001/telemetry"
	"github.com/smarter-sh/smarter-sub001/tool"
	"github.com/smarter-sh/smarter-sub001/usage"
)

// Defaults is the model configuration used when the session leaves a field
// unset.
type Defaults struct {
	Model       string
	Temperature *float64
	MaxTokens   *int64
}

// Options configures an Orchestrator.
type Options struct {
	// Client is the chat-completion transport. Required.
	Client model.Client
	// Catalog holds the built-in and ad-hoc functions callers may select.
	Catalog *tool.Catalog
	// Resolver looks up plugins the model names that were not selected.
	Resolver tool.PluginResolver
	// History supplies prior messages. Nil means every call starts fresh.
	History session.HistoryStore

	Ledger  usage.Ledger
	Sink    telemetry.Sink
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Logger  logging.Logger

	Defaults Defaults
	// AllowedModels restricts the effective model. Empty allows any.
	AllowedModels []string
	// SystemPrompt seeds threads that bring no system message; the current
	// time is appended.
	SystemPrompt string
	// RequestID correlates logs and events. Generated when empty.
	RequestID string
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSystemPrompt is used when Options.SystemPrompt is empty.
const DefaultSystemPrompt = "You are a helpful assistant."

func defaultOptions() Options {
	return Options{
		Ledger:       usage.NopLedger{},
		Sink:         telemetry.NopSink{},
		Logger:       logging.NoOpLogger{},
		SystemPrompt: DefaultSystemPrompt,
		Now:          time.Now,
	}
}
