package logger

import (
	"github.com/sirupsen/logrus"
)

// New builds the process logger. An unknown level falls back to info.
func New(logLevel string) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", logLevel).Warn("unknown log level, use info")
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	return log
}
