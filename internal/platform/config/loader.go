package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = ".config.yaml"

	EnvConfigPath   = "LISTER_CONFIG"
	EnvProviderType = "LISTER_PROVIDER_TYPE"
	EnvModel        = "LISTER_MODEL"
	EnvProviderURL  = "LISTER_PROVIDER_URL"
	EnvPort         = "LISTER_PORT"
	EnvLogLevel     = "LISTER_LOG_LEVEL"
	EnvDNSServers   = "LISTER_DNS_SERVERS"
)

var supportedProviders = map[string]struct{}{
	"gemini": {},
	"openai": {},
	"ollama": {},
}

// Loader reads configuration from defaults, an optional YAML file, dotenv
// files and the process environment, in that order of precedence.
type Loader struct {
	useDotEnv   bool
	dotEnvFiles []string
	path        string
	lookupEnv   func(string) (string, bool)
}

// NewLoader creates a loader that reads .env.local and .env before the
// environment.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv:   true,
		dotEnvFiles: []string{".env.local", ".env"},
		lookupEnv:   os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from dotenv files before reading config.
func (l *Loader) WithDotEnv(enabled bool, files ...string) *Loader {
	l.useDotEnv = enabled
	if len(files) > 0 {
		l.dotEnvFiles = files
	}
	return l
}

// WithPath overrides the YAML file location.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
	// DotEnv lists the dotenv files that were found and applied.
	DotEnv []string
}

// Load builds the effective configuration.
func (l *Loader) Load() (*Result, error) {
	result := &Result{}

	if l.useDotEnv {
		for _, file := range l.dotEnvFiles {
			// godotenv.Load never overrides variables that are already set, so
			// earlier files win.
			if err := godotenv.Load(file); err != nil {
				continue
			}
			result.DotEnv = append(result.DotEnv, file)
		}
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		path = l.env(EnvConfigPath)
	}
	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		result.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
		result.Path = "defaults"
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	result.Config = cfg
	return result, nil
}

func (l *Loader) env(key string) string {
	if l.lookupEnv == nil {
		return ""
	}
	v, _ := l.lookupEnv(key)
	return strings.TrimSpace(v)
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v := l.env(EnvProviderType); v != "" {
		cfg.Provider.Type = v
	}
	if v := l.env(EnvModel); v != "" {
		cfg.Provider.ModelName = v
	}
	if v := l.env(EnvProviderURL); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := l.env(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := l.env(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v := l.env(EnvDNSServers); v != "" {
		cfg.DNS.Servers = splitList(v)
	}

	cfg.Provider.Type = strings.ToLower(strings.TrimSpace(cfg.Provider.Type))
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = DefaultAPIKeyEnv
	}
	// The credential may legitimately be absent here; the relay reports it
	// per request instead of refusing to start.
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = l.env(cfg.Provider.APIKeyEnv)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *Loader) validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if _, ok := supportedProviders[cfg.Provider.Type]; !ok {
		return fmt.Errorf("unsupported provider type: %q", cfg.Provider.Type)
	}
	if strings.TrimSpace(cfg.Provider.ModelName) == "" {
		return fmt.Errorf("provider model_name is required")
	}
	if cfg.Provider.Timeout < 0 {
		return fmt.Errorf("provider timeout must not be negative")
	}
	if cfg.Image.MaxFileSize <= 0 {
		return fmt.Errorf("image max_file_size must be positive")
	}
	return nil
}
