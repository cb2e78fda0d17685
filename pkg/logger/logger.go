// Package logger provides the structured console logger shared by every
// sqlevel component. Output is a single aligned line per entry with optional
// ANSI colors when attached to a terminal.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for console output
const (
	ColorReset        = "\033[0m"
	ColorCyan         = "\033[36m"
	ColorGreen        = "\033[32m"
	ColorBrightRed    = "\033[91m"
	ColorBrightYellow = "\033[93m"
	ColorBrightGray   = "\033[90m"
)

// Column widths for aligned output
const (
	componentWidth = 18
	logLevelWidth  = 7
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]string
}

// Logger provides leveled, structured logging with optional subscribers.
type Logger struct {
	component string

	mu             sync.RWMutex
	subscribers    []chan LogEntry
	colorEnabled   bool
	disableConsole bool
}

// New creates a new logger instance for the named component.
func New(component string) *Logger {
	return &Logger{
		component:    component,
		colorEnabled: isTerminal(),
	}
}

// Named returns a child logger with a dotted component suffix.
func (l *Logger) Named(suffix string) *Logger {
	child := New(l.component + "." + suffix)
	l.mu.RLock()
	child.colorEnabled = l.colorEnabled
	child.disableConsole = l.disableConsole
	l.mu.RUnlock()
	return child
}

func isTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

func (l *Logger) colorFor(level string) string {
	if !l.colorEnabled {
		return ""
	}
	switch level {
	case "DEBUG":
		return ColorBrightGray
	case "INFO":
		return ColorGreen
	case "WARN":
		return ColorBrightYellow
	case "ERROR", "FATAL":
		return ColorBrightRed
	default:
		return ColorReset
	}
}

// Subscribe returns a channel that receives every log entry. Entries are
// dropped rather than blocking when a subscriber falls behind.
func (l *Logger) Subscribe() <-chan LogEntry {
	ch := make(chan LogEntry, 100)
	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()
	return ch
}

// DisableConsoleOutput silences console output, leaving subscribers active.
func (l *Logger) DisableConsoleOutput() {
	l.mu.Lock()
	l.disableConsole = true
	l.mu.Unlock()
}

func (l *Logger) log(level, message string, fields map[string]string) {
	entry := LogEntry{Time: time.Now(), Level: level, Message: message, Fields: fields}

	l.mu.RLock()
	toConsole := !l.disableConsole
	l.mu.RUnlock()

	if toConsole {
		timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
		color := l.colorFor(level)
		reset := ""
		if l.colorEnabled {
			reset = ColorReset
		}
		line := fmt.Sprintf("%s[%s] [%-*s] [%s%-*s%s] %s%s",
			ColorCyan, timestamp, componentWidth, l.component,
			color, logLevelWidth, level, reset, message+formatFields(fields), reset)
		fmt.Println(line)
	}

	l.mu.RLock()
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
			// Skip if channel is full
		}
	}
	l.mu.RUnlock()
}

func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	return b.String()
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, args ...interface{}) {
	l.log("DEBUG", sprintf(message, args...), nil)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", fmt.Sprintf(format, args...), nil)
}

// Info logs an info message.
func (l *Logger) Info(message string, args ...interface{}) {
	l.log("INFO", sprintf(message, args...), nil)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", fmt.Sprintf(format, args...), nil)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, args ...interface{}) {
	l.log("WARN", sprintf(message, args...), nil)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", fmt.Sprintf(format, args...), nil)
}

// Error logs an error message.
func (l *Logger) Error(message string, args ...interface{}) {
	l.log("ERROR", sprintf(message, args...), nil)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", fmt.Sprintf(format, args...), nil)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(message string) {
	l.log("FATAL", message, nil)
	os.Exit(1)
}

// Fatalf logs a formatted fatal message and exits.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log("FATAL", fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}

// WithFields returns a context that logs with additional key/value fields.
func (l *Logger) WithFields(fields map[string]string) *LogContext {
	return &LogContext{logger: l, fields: fields}
}

func sprintf(message string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

// LogContext provides field-based logging.
type LogContext struct {
	logger *Logger
	fields map[string]string
}

func (c *LogContext) Debug(message string) {
	c.logger.log("DEBUG", message, c.fields)
}

func (c *LogContext) Info(message string) {
	c.logger.log("INFO", message, c.fields)
}

func (c *LogContext) Warn(message string) {
	c.logger.log("WARN", message, c.fields)
}

func (c *LogContext) Error(message string) {
	c.logger.log("ERROR", message, c.fields)
}
