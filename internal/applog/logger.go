// Package applog provides the process-wide leveled logger used by the
// ingestion pipeline, the server and the CLI.
package applog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel converts a name such as "warn" to a Level. Unknown names map
// to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes key=value log lines to a file and, optionally, a second
// writer such as stderr. A zero Logger discards everything.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	mirror io.Writer
	level  Level
}

var (
	// Log is the global logger instance.
	Log     = &Logger{level: LevelInfo}
	logOnce sync.Once
)

// Init opens path for appending and routes the global logger to it.
// An empty path leaves file logging disabled.
func Init(path string, level Level) error {
	Log.SetLevel(level)
	if path == "" {
		return nil
	}

	var initErr error
	logOnce.Do(func() {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = fmt.Errorf("open log file: %w", err)
			return
		}
		Log.mu.Lock()
		Log.file = f
		Log.mu.Unlock()
		Log.Info("Logger initialized", "path", path, "level", levelNames[level])
	})
	return initErr
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetMirror sends every line to w in addition to the log file.
// Pass nil to stop mirroring.
func (l *Logger) SetMirror(w io.Writer) {
	l.mu.Lock()
	l.mirror = w
	l.mu.Unlock()
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Enabled reports whether any output is configured.
func (l *Logger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil || l.mirror != nil
}

func (l *Logger) log(level Level, msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level || (l.file == nil && l.mirror == nil) {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(levelNames[level])
	b.WriteString("] ")
	b.WriteString(msg)
	for i := 0; i < len(keyvals)-1; i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	if len(keyvals)%2 == 1 {
		fmt.Fprintf(&b, " extra=%v", keyvals[len(keyvals)-1])
	}
	b.WriteByte('\n')
	line := b.String()

	if l.file != nil {
		l.file.WriteString(line)
	}
	if l.mirror != nil {
		io.WriteString(l.mirror, line)
	}
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.log(LevelDebug, msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.log(LevelInfo, msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.log(LevelWarn, msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.log(LevelError, msg, keyvals...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Timed logs the duration of an operation. Usage:
//
//	defer applog.Log.Timed("ingest file")()
func (l *Logger) Timed(operation string, keyvals ...any) func() {
	start := time.Now()
	l.Debug(operation, append([]any{"status", "started"}, keyvals...)...)
	return func() {
		l.Debug(operation, append([]any{"status", "completed", "duration", time.Since(start)}, keyvals...)...)
	}
}
