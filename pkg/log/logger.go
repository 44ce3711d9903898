package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// SetupLogger function setup logger.
func SetupLogger(loglevel string) {
	defaultLevel.Set(slog.Level(ToLogLevel(loglevel)))
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     &defaultLevel,
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			case slog.SourceKey:
				attr = slog.Attr{
					Key:   "logging.googleapis.com/sourceLocation",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))
}

// ToLogLevel converts a level name to a Level value.
func ToLogLevel(level string) Level {
	switch level {
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// ===========================================================================
//
//	Default provider
//
// ===========================================================================

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider = &slogProvider{}
	defaultLevel    slog.LevelVar
)

// SetProvider replaces the package-level logger provider. Tests use this to
// capture log output; applications use it to bridge another backend.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	defaultProvider = p
}

// GetLogger returns the default logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a named component logger from the current provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}

// slogProvider is the default LoggerProvider, backed by the process-wide
// slog default logger so that SetupLogger configuration applies.
type slogProvider struct{}

func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{s: slog.Default()}
}

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{s: slog.Default().With(ComponentKey, name)}
}

func (p *slogProvider) SetLevel(level Level) {
	defaultLevel.Set(slog.Level(level))
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	s *slog.Logger
}

func (l *slogLogger) Debug(msg string, fields ...any) {
	l.s.Debug(msg, normalizeFields(fields)...)
}

func (l *slogLogger) Info(msg string, fields ...any) {
	l.s.Info(msg, normalizeFields(fields)...)
}

func (l *slogLogger) Warn(msg string, fields ...any) {
	l.s.Warn(msg, normalizeFields(fields)...)
}

func (l *slogLogger) Error(msg string, fields ...any) {
	l.s.Error(msg, normalizeFields(fields)...)
}

func (l *slogLogger) With(fields ...any) Logger {
	return &slogLogger{s: l.s.With(normalizeFields(fields)...)}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.s.Handler().Enabled(ctx, slog.Level(level))
}

// normalizeFields converts a bare leading error value into an ErrAttr so the
// ErrFmtHandler can extract its stack trace.
func normalizeFields(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	if err, ok := fields[0].(error); ok {
		out := make([]any, 0, len(fields)+1)
		out = append(out, ErrAttr(err))
		out = append(out, fields[1:]...)
		return out
	}
	return fields
}
