package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	appLogger *logrus.Logger
	once      sync.Once
)

// Init configures the application logger. When file is set, output goes to
// both stdout and a rotated log file.
func Init(level, file string) *logrus.Logger {
	log := GetAppLogger()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if file != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}
	return log
}

// GetAppLogger returns the process-wide logger. It is logrus' standard logger
// so package-level logrus calls share its level and output.
func GetAppLogger() *logrus.Logger {
	once.Do(func() {
		appLogger = logrus.StandardLogger()
		appLogger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
		appLogger.SetOutput(os.Stdout)
	})
	return appLogger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
