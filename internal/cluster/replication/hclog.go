// Package replication provides the consensus state machine for DocMesh.
package replication

import (
	"io"
	"log"
	"log/slog"

	"github.com/hashicorp/go-hclog"
)

// raftLogger adapts slog.Logger to the hclog.Logger interface that
// hashicorp/raft expects.
type raftLogger struct {
	logger *slog.Logger
}

func (l *raftLogger) Log(level hclog.Level, msg string, args ...any) {
	switch level {
	case hclog.Trace, hclog.Debug:
		l.logger.Debug(msg, args...)
	case hclog.Warn:
		l.logger.Warn(msg, args...)
	case hclog.Error:
		l.logger.Error(msg, args...)
	default:
		l.logger.Info(msg, args...)
	}
}

func (l *raftLogger) Trace(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *raftLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *raftLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *raftLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *raftLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *raftLogger) IsTrace() bool { return false }
func (l *raftLogger) IsDebug() bool { return false }
func (l *raftLogger) IsInfo() bool  { return true }
func (l *raftLogger) IsWarn() bool  { return true }
func (l *raftLogger) IsError() bool { return true }

func (l *raftLogger) ImpliedArgs() []any { return nil }

func (l *raftLogger) With(args ...any) hclog.Logger {
	return &raftLogger{logger: l.logger.With(args...)}
}

func (l *raftLogger) Name() string { return "raft" }

func (l *raftLogger) Named(name string) hclog.Logger {
	return &raftLogger{logger: l.logger.With("component", name)}
}

func (l *raftLogger) ResetNamed(name string) hclog.Logger {
	return l.Named(name)
}

func (l *raftLogger) SetLevel(level hclog.Level) {}
func (l *raftLogger) GetLevel() hclog.Level      { return hclog.Info }

func (l *raftLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *raftLogger) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}
