package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init builds the structured logger shared by a command.
// format "json" forces JSON output; anything else gives text unless production is true.
func Init(level, format string, production bool) *logrus.Logger {
	log := logrus.New()

	if level == "" {
		level = "info"
	}
	if lv, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		log.SetLevel(lv)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", level).Warn("invalid LOG_LEVEL, using info")
	}

	if production || strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	log.SetOutput(os.Stdout)

	return log
}

// Discard returns an entry that writes nowhere. Used by tests and tools.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// Snippet shortens s for log lines.
func Snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
