// Package logging provides leveled console output for the substrate.
// The event log is the forensic record; this package exists for real-time
// operator monitoring of lock waits, healing attempts, and anomalies.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// rank orders levels for threshold filtering.
func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	default:
		return 3
	}
}

// Logger writes leveled, key=value structured lines. Child loggers share
// the parent's writer; tags are per-child.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	taskID    string
}

// New creates a new Logger writing to stdout at INFO level.
func New() *Logger {
	return &Logger{output: os.Stdout, minLevel: LevelInfo}
}

// Nop returns a logger that discards all output. Useful in tests.
func Nop() *Logger {
	return &Logger{output: io.Discard, minLevel: LevelError}
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	child := l.clone()
	child.component = component
	return child
}

// WithTaskID returns a child logger tagged with a task ID.
func (l *Logger) WithTaskID(taskID string) *Logger {
	child := l.clone()
	child.taskID = taskID
	return child
}

func (l *Logger) clone() *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		taskID:    l.taskID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// tagged returns the caller's fields with the logger's task ID folded in.
func (l *Logger) tagged(fields []map[string]interface{}) map[string]interface{} {
	var f map[string]interface{}
	if len(fields) > 0 && fields[0] != nil {
		f = fields[0]
	}
	if l.taskID == "" {
		return f
	}
	merged := make(map[string]interface{}, len(f)+1)
	for k, v := range f {
		merged[k] = v
	}
	merged["task_id"] = l.taskID
	return merged
}

// log writes a line: LEVEL TIMESTAMP [component] message key=value ...
// Field keys are sorted so lines are stable and grep-friendly.
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if rank(level) < rank(l.minLevel) {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-5s %s ", level, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if l.component != "" {
		fmt.Fprintf(&sb, "[%s] ", l.component)
	}
	sb.WriteString(msg)

	f := l.tagged(fields)
	if len(f) > 0 {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, f[k])
		}
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.output, sb.String())
}
