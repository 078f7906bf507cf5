package tool

import (
	"context"

	"github.com/smarter-sh/smarter-sub001/logging"
)

type callKey struct{}

type callInfo struct {
	id     string
	logger logging.Logger
}

// WithCall annotates ctx with the tool call id being executed and the
// logger capabilities should use.
func WithCall(ctx context.Context, callID string, logger logging.Logger) context.Context {
	return context.WithValue(ctx, callKey{}, callInfo{id: callID, logger: logging.OrNoOp(logger)})
}

// CallIDFrom returns the tool call id set by WithCall, or "".
func CallIDFrom(ctx context.Context) string {
	info, _ := ctx.Value(callKey{}).(callInfo)
	return info.id
}

// LoggerFrom returns the logger set by WithCall, or a NoOpLogger.
func LoggerFrom(ctx context.Context) logging.Logger {
	if info, ok := ctx.Value(callKey{}).(callInfo); ok {
		return info.logger
	}
	return logging.NoOpLogger{}
}
