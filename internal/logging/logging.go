package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Level names accepted in config and on the command line.
const (
	LevelQuiet   = "quiet"
	LevelNormal  = "normal"
	LevelVerbose = "verbose"
	LevelDebug   = "debug"
)

// New builds the process logger. Unknown levels fall back to normal.
func New(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch level {
	case LevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
