// Package logger is the process-wide logger used by every hivelink component.
//
// Call sites use printf-style helpers with a bracketed component prefix:
//
//	logger.Info("[SubAgent] spawned %s under %s", agentID, parentSessionID)
//
// The X variants attach a "module" field so logs from one service can be filtered:
//
//	logger.WarnX(pkg.ModuleName, "[Stream] dropped frame for %s", sessionID)
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	std = newStd()

	mu      sync.Mutex
	logFile *os.File
)

func newStd() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// InitLog adds a file sink at path next to stderr. An empty path keeps stderr only.
func InitLog(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", path, err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	std.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// FlushLog syncs and closes the file sink opened by InitLog.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return
	}
	_ = logFile.Sync()
	_ = logFile.Close()
	logFile = nil
	std.SetOutput(os.Stderr)
}

// SetLevel parses and applies a level name ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	return nil
}

// SetOutput redirects all log output; used by tests to silence or capture logs.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func Debug(format string, args ...interface{}) { std.Debugf(format, args...) }
func Info(format string, args ...interface{})  { std.Infof(format, args...) }
func Warn(format string, args ...interface{})  { std.Warnf(format, args...) }
func Error(format string, args ...interface{}) { std.Errorf(format, args...) }

func DebugX(module, format string, args ...interface{}) {
	std.WithField("module", module).Debugf(format, args...)
}

func InfoX(module, format string, args ...interface{}) {
	std.WithField("module", module).Infof(format, args...)
}

func WarnX(module, format string, args ...interface{}) {
	std.WithField("module", module).Warnf(format, args...)
}

func ErrorX(module, format string, args ...interface{}) {
	std.WithField("module", module).Errorf(format, args...)
}
