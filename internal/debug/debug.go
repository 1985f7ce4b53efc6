package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/reindex/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// Component names used as zap logger names
const (
	ComponentIndex     = "INDEX"
	ComponentFastPath  = "FASTPATH"
	ComponentEpoch     = "EPOCH"
	ComponentHash      = "HASH"
	ComponentWatch     = "WATCH"
	ComponentTypecheck = "TYPECHECK"
)

var (
	// debugOutput is the writer behind the logger (nil means no output)
	debugOutput io.Writer

	// debugFile holds the open file handle if debug output goes to a file
	debugFile *os.File

	// logger writes to debugOutput; nil when no output is configured
	logger *zap.Logger

	// level gates every entry, including the debug-only ones
	level = zap.NewAtomicLevelAt(zapcore.DebugLevel)

	// debugMutex protects the fields above
	debugMutex sync.Mutex
)

func newLogger(w io.Writer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// SetDebugOutput sets a custom writer for log output.
// Pass nil to disable output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
	if w == nil {
		logger = nil
		return
	}
	logger = newLogger(w)
}

// SetLevel parses a zap level name ("debug", "info", "warn", "error").
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

// InitDebugLogFile initializes debug logging to a file.
// Returns the path to the log file, or an error if initialization fails.
// Call CloseDebugLog when done to ensure the file is properly closed.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "reindex-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	logger = newLogger(file)
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		if logger != nil {
			_ = logger.Sync()
		}
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		logger = nil
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug mode is enabled
func IsDebugEnabled() bool {
	// Check build flag first
	if EnableDebug == "true" {
		return true
	}

	// Allow runtime override via environment variable
	if os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		return true
	}

	return false
}

func getLogger() *zap.Logger {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return logger
}

// Logger returns the structured logger, or a no-op logger when output is disabled.
func Logger() *zap.Logger {
	if l := getLogger(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Printf prints debug information only when debug mode is enabled and output is configured
func Printf(format string, args ...interface{}) {
	Log("", format, args...)
}

// Log provides debug logging with component names
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	l := getLogger()
	if l == nil {
		return
	}
	if component != "" {
		l = l.Named(component)
	}
	l.Sugar().Debugf(strings.TrimSuffix(format, "\n"), args...)
}

// Infof logs regardless of the debug switch (still subject to level and output).
func Infof(component, format string, args ...interface{}) {
	if l := getLogger(); l != nil {
		l.Named(component).Sugar().Infof(strings.TrimSuffix(format, "\n"), args...)
	}
}

// Warnf logs a warning regardless of the debug switch.
func Warnf(component, format string, args ...interface{}) {
	if l := getLogger(); l != nil {
		l.Named(component).Sugar().Warnf(strings.TrimSuffix(format, "\n"), args...)
	}
}

// LogIndexing provides debug logging specifically for indexing operations
func LogIndexing(format string, args ...interface{}) {
	Log(ComponentIndex, format, args...)
}

// LogFastPath logs fast path decisions
func LogFastPath(format string, args ...interface{}) {
	Log(ComponentFastPath, format, args...)
}

// LogEpoch logs epoch manager transitions
func LogEpoch(format string, args ...interface{}) {
	Log(ComponentEpoch, format, args...)
}

// LogHash logs fingerprinting work
func LogHash(format string, args ...interface{}) {
	Log(ComponentHash, format, args...)
}

// Fatal outputs a catastrophic error message to the log and returns a fatal error.
// Callers decide whether to stop.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if l := getLogger(); l != nil {
		l.Error(msg, zap.Bool("fatal", true))
	}
	return fmt.Errorf("fatal error: %s", msg)
}
