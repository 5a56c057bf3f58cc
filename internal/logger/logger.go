// Package logger is the component-keyed structured logger shared by every package.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger provides structured logging keyed by component. Error takes the message the
// operator sees alongside the cause.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component, message string, err error, fields map[string]interface{})
}

// ParseLevel maps a configuration string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Zerolog writes one event per call, tagged with the component and the given fields.
type Zerolog struct {
	logger zerolog.Logger
}

func NewZerolog(w io.Writer, level zerolog.Level) *Zerolog {
	return &Zerolog{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// New builds the process logger: JSON lines on stdout when jsonOutput is set, a
// human-readable console otherwise.
func New(level string, jsonOutput bool) *Zerolog {
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	if jsonOutput {
		w = os.Stdout
	}
	return NewZerolog(w, ParseLevel(level))
}

func (z *Zerolog) Debug(component, message string, fields map[string]interface{}) {
	emit(z.logger.Debug(), component, fields).Msg(message)
}

func (z *Zerolog) Info(component, message string, fields map[string]interface{}) {
	emit(z.logger.Info(), component, fields).Msg(message)
}

func (z *Zerolog) Warning(component, message string, fields map[string]interface{}) {
	emit(z.logger.Warn(), component, fields).Msg(message)
}

func (z *Zerolog) Error(component, message string, err error, fields map[string]interface{}) {
	emit(z.logger.Error().Err(err), component, fields).Msg(message)
}

func emit(event *zerolog.Event, component string, fields map[string]interface{}) *zerolog.Event {
	return event.Str("component", component).Fields(fields)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(component, message string, fields map[string]interface{})   {}
func (NoOpLogger) Info(component, message string, fields map[string]interface{})    {}
func (NoOpLogger) Warning(component, message string, fields map[string]interface{}) {}
func (NoOpLogger) Error(component, message string, err error, fields map[string]interface{}) {
}
