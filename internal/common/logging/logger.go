package logging

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Logger wraps zerolog and provides the leveled, structured logging interface
// used throughout the simulator.
type Logger struct {
	underlying zerolog.Logger
}

// FromZerolog returns a Logger backed by the given zerolog.Logger.
func FromZerolog(l zerolog.Logger) *Logger {
	return &Logger{underlying: l}
}

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (l *Logger) Debug(args ...any) {
	l.underlying.Debug().Msg(fmt.Sprint(args...))
}

func (l *Logger) Info(args ...any) {
	l.underlying.Info().Msg(fmt.Sprint(args...))
}

func (l *Logger) Warn(args ...any) {
	l.underlying.Warn().Msg(fmt.Sprint(args...))
}

func (l *Logger) Error(args ...any) {
	l.underlying.Error().Msg(fmt.Sprint(args...))
}

func (l *Logger) Fatal(args ...any) {
	l.underlying.Fatal().Msg(fmt.Sprint(args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.underlying.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.underlying.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.underlying.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.underlying.Error().Msgf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.underlying.Fatal().Msgf(format, args...)
}

// WithField returns a new Logger with the key-value pair added as a new field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{underlying: l.underlying.With().Interface(key, value).Logger()}
}

// WithFields returns a new Logger with all key-value pairs in the map added as new fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	ctx := l.underlying.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{underlying: ctx.Logger()}
}

// WithError returns a new Logger with the error added as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{underlying: l.underlying.With().AnErr("error", err).Logger()}
}

// WithStacktrace returns a new Logger with the error and (if available) its
// stacktrace added as fields.
func (l *Logger) WithStacktrace(err error) *Logger {
	logger := l.WithError(err)
	if stackErr, ok := err.(stackTracer); ok {
		return logger.WithField("stacktrace", fmt.Sprintf("%v", stackErr.StackTrace()))
	}
	return logger
}
