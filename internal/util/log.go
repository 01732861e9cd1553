// Package util provides shared logging and formatting helpers.
package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm prefixed printers.
// All output goes to stderr by default (pterm's default).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// Logger is the leveled logger handed to session components. Each component
// gets its own scope so lines can be told apart when several sessions run in
// one process.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	With(scope string) Logger
}

// NewLogger returns a Logger printing through pterm.DefaultLogger with the
// given scope as prefix.
func NewLogger(scope string) Logger {
	return ptermLogger{scope: scope}
}

type ptermLogger struct {
	scope string
}

func (l ptermLogger) line(format string, args []interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if l.scope == "" {
		return msg
	}
	return "[" + l.scope + "] " + msg
}

func (l ptermLogger) Debugf(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(l.line(format, args))
}

func (l ptermLogger) Infof(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(l.line(format, args))
}

func (l ptermLogger) Warnf(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(l.line(format, args))
}

func (l ptermLogger) Errorf(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(l.line(format, args))
}

func (l ptermLogger) With(scope string) Logger {
	if l.scope == "" {
		return ptermLogger{scope: scope}
	}
	return ptermLogger{scope: l.scope + "/" + scope}
}

// Discard returns a Logger that drops everything. Used by tests.
func Discard() Logger {
	return discard{}
}

type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
func (d discard) With(string) Logger          { return d }
