// Package logger wraps zap with a context-scoped sugared logger.
//
// The supervisor stores a named logger in every context it hands out
// (ToContext/FromContext/WithName/WithKV), so a pipeline cycle, the launcher
// and the shutdown coordinator all log with the same cycle fields attached.
// Level helpers (Info, WarnKV, ...) read the logger from the context.
package logger
