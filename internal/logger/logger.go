package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes structured, component-tagged log events
type Logger struct {
	logger zerolog.Logger
}

func New(writer io.Writer, level zerolog.Level) *Logger {
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{logger: logger}
}

// NewConsole writes human readable lines to stderr so stdout stays free for
// the run summary
func NewConsole(level zerolog.Level) *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, level)
}

// Nop discards everything; used by tests
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// ParseLevel maps a config string to a level, defaulting to info
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

// With returns a child logger that adds fields to every event
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{logger: l.logger.With().Fields(fields).Logger()}
}

// Stage returns a child logger tagging events with a workflow step
func (l *Logger) Stage(step int, name string) *Logger {
	return &Logger{logger: l.logger.With().Int("step", step).Str("stage", name).Logger()}
}

func (l *Logger) Info(component, message string, fields map[string]interface{}) {
	emit(l.logger.Info(), component, fields, message)
}

func (l *Logger) Error(component string, err error, fields map[string]interface{}) {
	emit(l.logger.Error().Err(err), component, fields, "operation failed")
}

func (l *Logger) Warning(component, message string, fields map[string]interface{}) {
	emit(l.logger.Warn(), component, fields, message)
}

func (l *Logger) Debug(component, message string, fields map[string]interface{}) {
	emit(l.logger.Debug(), component, fields, message)
}

// Done logs message at info level with the time elapsed since start
func (l *Logger) Done(component, message string, start time.Time, fields map[string]interface{}) {
	emit(l.logger.Info().Dur("elapsed", time.Since(start)), component, fields, message)
}

func emit(event *zerolog.Event, component string, fields map[string]interface{}, message string) {
	if event == nil {
		return
	}
	event.Str("component", component).Fields(fields).Msg(message)
}
