package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogRetentionDays = 7

	consoleTimeFormat = "2006-01-02 15:04:05.000"
	dateLayout        = "2006-01-02"
)

// Config captures logging configuration options. An empty Dir disables the
// JSON file sink.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// Logger writes human-readable lines to the console and JSON lines to a
// daily-rotated file.
type Logger struct {
	config      Config
	level       zerolog.Level
	console     zerolog.Logger
	file        zerolog.Logger
	logFile     *os.File
	currentDate string
	mu          sync.RWMutex
	ticker      *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)
	l := &Logger{
		config:      cfg,
		level:       level,
		console:     newConsole(os.Stdout, level),
		file:        zerolog.Nop(),
		currentDate: time.Now().Format(dateLayout),
		stopCh:      make(chan struct{}),
	}

	if cfg.Dir == "" {
		return l, nil
	}
	if cfg.Filename == "" {
		l.config.Filename = "server.log"
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(l.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.logFile = file
	l.file = newJSON(file, level)

	l.startRotationChecker()
	return l, nil
}

// NewWriter creates a console-only logger writing to w. Tests use it to
// capture output.
func NewWriter(w io.Writer, level string) *Logger {
	lvl := parseLevel(level)
	return &Logger{
		config:  Config{Level: level},
		level:   lvl,
		console: newJSON(w, lvl),
		file:    zerolog.Nop(),
		stopCh:  make(chan struct{}),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, "error")
}

func newConsole(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: consoleTimeFormat,
	}).Level(level).With().Timestamp().Logger()
}

func newJSON(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func (l *Logger) logPath() string {
	return filepath.Join(l.config.Dir, l.config.Filename)
}

func (l *Logger) startRotationChecker() {
	l.ticker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.checkAndRotate(time.Now())
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Logger) checkAndRotate(now time.Time) {
	today := now.Format(dateLayout)
	l.mu.RLock()
	current := l.currentDate
	l.mu.RUnlock()
	if today != current {
		l.rotateLogFile(today)
		l.cleanOldLogs(now)
	}
}

func (l *Logger) rotateLogFile(newDate string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Close()
	}

	base := strings.TrimSuffix(l.config.Filename, filepath.Ext(l.config.Filename))
	ext := filepath.Ext(l.config.Filename)
	archived := filepath.Join(l.config.Dir, fmt.Sprintf("%s-%s%s", base, l.currentDate, ext))

	if _, err := os.Stat(l.logPath()); err == nil {
		if err := os.Rename(l.logPath(), archived); err != nil {
			l.console.Error().Err(err).Msg("rename log file")
		}
	}

	file, err := os.OpenFile(l.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.console.Error().Err(err).Msg("open rotated log file")
		l.logFile = nil
		l.file = zerolog.Nop()
		return
	}

	l.logFile = file
	l.currentDate = newDate
	l.file = newJSON(file, l.level)
	l.console.Info().Str("new_date", newDate).Msg("log file rotated")
}

func (l *Logger) cleanOldLogs(now time.Time) {
	entries, err := os.ReadDir(l.config.Dir)
	if err != nil {
		l.console.Error().Err(err).Msg("read log dir")
		return
	}

	cutoff := now.AddDate(0, 0, -LogRetentionDays)
	base := strings.TrimSuffix(l.config.Filename, filepath.Ext(l.config.Filename))
	ext := filepath.Ext(l.config.Filename)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base+"-") || !strings.HasSuffix(name, ext) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, base+"-"), ext)
		fileDate, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.config.Dir, name)); err != nil {
				l.console.Error().Err(err).Str("file", name).Msg("remove old log file")
			} else {
				l.console.Info().Str("file", name).Msg("removed old log file")
			}
		}
	}
}

// Close stops rotation and releases the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
		close(l.stopCh)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.logFile != nil {
			err = l.logFile.Close()
			l.logFile = nil
			l.file = zerolog.Nop()
		}
	})
	return err
}

func (l *Logger) log(level zerolog.Level, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, target := range []*zerolog.Logger{&l.file, &l.console} {
		event := target.WithLevel(level)
		if event == nil {
			continue
		}
		if len(fields) > 0 {
			event = event.Fields(fields)
		}
		event.Msg(msg)
	}
}

func (l *Logger) emit(level zerolog.Level, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.log(level, msg, nil)
}

func (l *Logger) emitFields(level zerolog.Level, msg string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	l.log(level, msg, fields)
}

// Debug logs at debug level, formatting msg with args printf-style.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.emit(zerolog.DebugLevel, msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.emit(zerolog.InfoLevel, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.emit(zerolog.WarnLevel, msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.emit(zerolog.ErrorLevel, msg, args...)
}

// DebugFields logs msg with fields attached as structured JSON keys.
func (l *Logger) DebugFields(msg string, fields map[string]interface{}) {
	l.emitFields(zerolog.DebugLevel, msg, fields)
}

func (l *Logger) ErrorFields(msg string, fields map[string]interface{}) {
	l.emitFields(zerolog.ErrorLevel, msg, fields)
}

// FormatLog prefixes message with a category tag, e.g. FormatLog("HTTP", "up")
// yields "[HTTP] up". Messages already starting with "[" are returned as is.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	l.emit(zerolog.DebugLevel, FormatLog(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	l.emit(zerolog.InfoLevel, FormatLog(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	l.emit(zerolog.WarnLevel, FormatLog(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	l.emit(zerolog.ErrorLevel, FormatLog(tag, msg), args...)
}

// Level reports the configured level name.
func (l *Logger) Level() string {
	return l.level.String()
}
