package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel maps a Level onto zap's levels
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a config string ("debug", "info", ...) into a Level
func ParseLevel(s string) (Level, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(s)); err != nil {
		return INFO, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	switch {
	case zl <= zapcore.DebugLevel:
		return DEBUG, nil
	case zl == zapcore.InfoLevel:
		return INFO, nil
	case zl == zapcore.WarnLevel:
		return WARN, nil
	default:
		return ERROR, nil
	}
}

// Logger writes leveled logs to a daily file through zap
type Logger struct {
	mu    sync.RWMutex
	level Level
	atom  zap.AtomicLevel
	out   *dailyFile
	zl    *zap.Logger
	sugar *zap.SugaredLogger
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	logDir := filepath.Join(homeDir, "Library", "Application Support", "Moira", "logs")

	return Config{
		LogDir:        logDir,
		Level:         INFO,
		RetentionDays: 7,
	}
}

// New creates a new file logger
func New(config Config) (*Logger, error) {
	out := &dailyFile{
		dir:           config.LogDir,
		retentionDays: config.RetentionDays,
		now:           time.Now,
	}
	if err := out.open(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	l := &Logger{
		level: config.Level,
		atom:  zap.NewAtomicLevelAt(config.Level.zapLevel()),
		out:   out,
	}
	// Every logger derived from zl writes through out, so they all follow rotation
	l.zl = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, l.atom))
	l.sugar = l.zl.Sugar()

	if err := out.cleanOldLogs(); err != nil {
		l.sugar.Warnf("Failed to clean old logs: %v", err)
	}

	return l, nil
}

// Wrap adapts an existing zap logger, without file rotation.
// Used by tests (zaptest) and embedders that own their zap setup.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{
		level: DEBUG,
		atom:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
		zl:    z,
		sugar: z.Sugar(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// logFileName returns the file name used for the given day
func logFileName(day string) string {
	return fmt.Sprintf("moira-%s.log", day)
}

// dailyFile is the zap sink. It switches to a new file on the first
// write of each day and deletes files older than retentionDays.
type dailyFile struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	day           string
	file          *os.File
	now           func() time.Time
}

var _ zapcore.WriteSyncer = (*dailyFile)(nil)

// open makes today's file the current one
func (d *dailyFile) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.rotateLocked()
	return err
}

// rotateLocked switches files when the day changed; callers hold mu
func (d *dailyFile) rotateLocked() (bool, error) {
	today := d.now().Format("20060102")
	if d.day == today && d.file != nil {
		return false, nil
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(d.dir, logFileName(today)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open log file: %w", err)
	}

	if d.file != nil {
		d.file.Close()
	}
	d.file = file
	d.day = today
	return true, nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, os.ErrClosed
	}
	rotated, err := d.rotateLocked()
	if err != nil {
		// Keep writing to yesterday's file rather than dropping the line
		fmt.Fprintf(os.Stderr, "Failed to rotate log: %v\n", err)
	}
	if rotated {
		if err := d.cleanOldLogs(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to clean old logs: %v\n", err)
		}
	}
	return d.file.Write(p)
}

func (d *dailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	return d.file.Sync()
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// cleanOldLogs deletes log files older than retentionDays
func (d *dailyFile) cleanOldLogs() error {
	cutoffDate := d.now().AddDate(0, 0, -d.retentionDays)

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffDate) {
			// Continue even if we can't delete a file
			os.Remove(filepath.Join(d.dir, entry.Name()))
		}
	}

	return nil
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if level < l.GetLevel() {
		return
	}
	l.mu.RLock()
	sugar := l.sugar
	l.mu.RUnlock()
	if sugar == nil {
		return
	}

	switch level {
	case DEBUG:
		sugar.Debugf(format, v...)
	case INFO:
		sugar.Infof(format, v...)
	case WARN:
		sugar.Warnf(format, v...)
	default:
		sugar.Errorf(format, v...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.logf(DEBUG, format, v...) }

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) { l.logf(INFO, format, v...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) { l.logf(WARN, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.logf(ERROR, format, v...) }

// Zap returns the underlying structured logger
func (l *Logger) Zap() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.zl != nil {
		l.zl.Sync()
	}
	if l.out != nil {
		return l.out.Close()
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.level = level
	l.atom.SetLevel(level.zapLevel())
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.level
}
