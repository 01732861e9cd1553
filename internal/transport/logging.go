package transport

import (
	"github.com/pion/logging"

	"github.com/1ureka/whep-play/internal/util"
)

// NewLoggerFactory routes pion's internal logging (ICE, DTLS, SCTP...) onto
// the player's logger. pion info lines are demoted to debug.
func NewLoggerFactory(log util.Logger) logging.LoggerFactory {
	return &loggerFactory{log: log}
}

type loggerFactory struct {
	log util.Logger
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{log: f.log.With(scope)}
}

type pionLogger struct {
	log util.Logger
}

func (l *pionLogger) Trace(string)                              {}
func (l *pionLogger) Tracef(string, ...interface{})             {}
func (l *pionLogger) Debug(msg string)                          { l.log.Debugf("%s", msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *pionLogger) Info(msg string)                           { l.log.Debugf("%s", msg) }
func (l *pionLogger) Infof(format string, args ...interface{})  { l.log.Debugf(format, args...) }
func (l *pionLogger) Warn(msg string)                           { l.log.Warnf("%s", msg) }
func (l *pionLogger) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *pionLogger) Error(msg string)                          { l.log.Errorf("%s", msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }
