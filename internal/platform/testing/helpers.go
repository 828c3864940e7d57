package testing

import (
	"bytes"
	"sync"
	"testing"

	"lazy-lister/internal/platform/config"
	"lazy-lister/internal/platform/logging"
)

// SetupTestConfig returns the default configuration with logs redirected to
// a per-test directory and debug logging on.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = t.TempDir()
	cfg.Log.File = "test.log"
	cfg.Provider.APIKey = "test-key"

	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

// SyncBuffer is a bytes.Buffer safe for loggers written from several
// goroutines.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SetupBufferLogger returns a debug logger whose JSON output is captured.
func SetupBufferLogger(t *testing.T) (*logging.Logger, *SyncBuffer) {
	t.Helper()

	buf := &SyncBuffer{}
	return logging.NewWriter(buf, "debug"), buf
}
