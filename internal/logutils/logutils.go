package logutils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before InitLogger is called.
var Log = newLogger(logrus.InfoLevel)

func newLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(level)
	return logger
}

// InitLogger sets the level of Log. Unknown levels fall back to info.
func InitLogger(level string) {
	parsedLevel, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
		parsedLevel = logrus.InfoLevel
	}
	Log.SetLevel(parsedLevel)
	Log.Infof("Log level set to %s", parsedLevel)
}
