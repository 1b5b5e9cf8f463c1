// Package logging provides structured logging for the time ledger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields is a map of structured log context.
type Fields = logrus.Fields

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Safe to call more than once; only
// the first call takes effect.
func Init(out io.Writer, level string) {
	once.Do(func() {
		global = newLogger(out, level)
	})
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

// Convenience functions using the global logger.

func Debug(message string, fields ...Fields) {
	Get().WithFields(merge(fields)).Debug(message)
}

func Info(message string, fields ...Fields) {
	Get().WithFields(merge(fields)).Info(message)
}

func Warn(message string, fields ...Fields) {
	Get().WithFields(merge(fields)).Warn(message)
}

func Error(message string, err error, fields ...Fields) {
	entry := Get().WithFields(merge(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// merge flattens multiple field maps into one.
func merge(fields []Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return fields[0]
	}
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}
