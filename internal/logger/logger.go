package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Init configures the process-wide logger. Unknown levels fall back to info.
func Init(level string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}

	logrus.SetLevel(lvl)
	logrus.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceFormatting: true,
	})
}

// GetLogger returns a component-prefixed log entry.
func GetLogger(prefix string) *logrus.Entry {
	return logrus.WithField("prefix", prefix)
}
