package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger.
var Log = newLogger(os.Stdout)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// ConfigureLogger sets the log level, unknown levels fall back to info.
func ConfigureLogger(level string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
}

// SetLogOutput redirects the logger, tests use it to silence output.
func SetLogOutput(w io.Writer) {
	Log.SetOutput(w)
}

func caller() logrus.Fields {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return logrus.Fields{}
	}
	return logrus.Fields{"caller": fmt.Sprintf("%s:%d", filepath.Base(file), line)}
}

// LogInfo logs an informational message
func LogInfo(format string, v ...interface{}) {
	Log.WithFields(caller()).Infof(format, v...)
}

// LogError logs an error message
func LogError(format string, v ...interface{}) {
	Log.WithFields(caller()).Errorf(format, v...)
}

// LogDebug logs a debug message
func LogDebug(format string, v ...interface{}) {
	Log.WithFields(caller()).Debugf(format, v...)
}

// LogOperation logs how long an operation took and whether it failed.
func LogOperation(operation string, startTime time.Time, err error) {
	entry := Log.WithFields(caller()).WithFields(logrus.Fields{
		"operation": operation,
		"duration":  time.Since(startTime).String(),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return
	}
	entry.Info("operation completed")
}
