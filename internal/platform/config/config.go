package config

import (
	"time"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Provider      ProviderConfig      `yaml:"provider"`
	Image         ImageConfig         `yaml:"image"`
	DNS           DNSConfig           `yaml:"dns"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	// StaticDir serves the web UI from disk instead of the embedded copy.
	StaticDir    string        `yaml:"static_dir"`
	AllowOrigins []string      `yaml:"allow_origins"`
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// ProviderConfig selects and parameterises the generative model backend.
type ProviderConfig struct {
	Type        string  `yaml:"type"`
	ModelName   string  `yaml:"model_name"`
	BaseURL     string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
	// Timeout bounds the outbound call. Zero leaves it to the provider defaults.
	Timeout time.Duration `yaml:"timeout"`
}

// ImageConfig bounds what the relay accepts as an upload.
type ImageConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats"`
	EnableDeepScan bool     `yaml:"enable_deep_scan"`
}

// DNSConfig lists resolvers installed once at startup. Empty keeps the system
// resolver.
type DNSConfig struct {
	Servers []string `yaml:"servers"`
}

type ObservabilityConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}
