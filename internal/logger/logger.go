// Package logger builds the logrus loggers used by every component.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is an alias so callers need not import logrus for field maps.
type Fields = logrus.Fields

// New creates a logger writing to out with the given level and format.
// format is "text" or "json"; an empty level means "info".
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("not a valid log format: %q", format)
	}

	return l, nil
}

// ParseLevel takes a string level and returns the logrus level constant.
func ParseLevel(lvl string) (logrus.Level, error) {
	switch strings.ToLower(lvl) {
	case "fatal":
		return logrus.FatalLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("not a valid log level: %q", lvl)
}

// Component returns an entry tagged with the component name.
// A nil logger yields an entry that discards everything.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	if l == nil {
		l = Discard()
	}
	return l.WithField("component", name)
}

// Discard returns a logger that drops all output.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
