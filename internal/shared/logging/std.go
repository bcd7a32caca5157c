package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps debug|info|warn|error to a Level. Unknown values map to info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// sink is shared by every StdLogger derived from the same root.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	level Level
	now   func() time.Time
}

// StdLogger writes formatted lines to stdout and an optional log file:
//
//	2025-09-30 12:34:56 [INFO] [Component] [log_id=...] file.go:123 - message
type StdLogger struct {
	sink      *sink
	component string
	logID     string
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(os.Stdout, LevelInfo)
)

// New creates a root logger writing to out at the given minimum level.
func New(out io.Writer, level Level) *StdLogger {
	if out == nil {
		out = io.Discard
	}
	return &StdLogger{sink: &sink{out: out, level: level, now: time.Now}}
}

// Configure replaces the process logger. When path is non-empty lines are
// also appended to that file.
func Configure(level Level, path string) (*StdLogger, error) {
	var out io.Writer = os.Stdout
	var file *os.File
	if path = strings.TrimSpace(path); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}
	logger := New(out, level)
	logger.sink.file = file

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return logger, nil
}

// Default returns the process logger.
func Default() *StdLogger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// WithComponent returns a logger sharing the same sink under a new component name.
func (l *StdLogger) WithComponent(component string) *StdLogger {
	if l == nil {
		return nil
	}
	return &StdLogger{sink: l.sink, component: component, logID: l.logID}
}

// WithLogID returns a shallow copy of the logger that tags log lines with a log id.
func (l *StdLogger) WithLogID(logID string) *StdLogger {
	if l == nil {
		return nil
	}
	if strings.TrimSpace(logID) == "" {
		return l
	}
	return &StdLogger{sink: l.sink, component: l.component, logID: logID}
}

// SetLevel sets the minimum level for every logger sharing this sink.
func (l *StdLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Close closes the log file, if any.
func (l *StdLogger) Close() error {
	if l == nil || l.sink.file == nil {
		return nil
	}
	return l.sink.file.Close()
}

func (l *StdLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *StdLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *StdLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *StdLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *StdLogger) log(level Level, format string, args ...any) {
	if l == nil || l.sink == nil {
		return
	}
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "TGBRIDGE"
	}
	timestamp := s.now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] ", timestamp, level, component)
	if logID := strings.TrimSpace(l.logID); logID != "" {
		fmt.Fprintf(&b, "[log_id=%s] ", logID)
	}
	fmt.Fprintf(&b, "%s:%d - %s\n", file, line, message)
	_, _ = io.WriteString(s.out, b.String())
}
