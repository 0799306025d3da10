package definition

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger is the default Logger implementation. It wraps a
// logrus.Entry so that fields attached via With show up as structured
// key=value pairs instead of being folded into the message string.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a Logger writing level-prefixed lines to stderr,
// matching the teacher's DefaultLogger register (terse, one line per
// call) while giving every line real structured fields.
func NewLogrusLogger() *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *LogrusLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *LogrusLogger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *LogrusLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *LogrusLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }

func (l *LogrusLogger) ToggleDebug(on bool) bool {
	if on {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return on
}

func (l *LogrusLogger) With(key string, value interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}
