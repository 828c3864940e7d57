package config

import "time"

const (
	DefaultModelName = "gemini-2.0-flash"
	DefaultAPIKeyEnv = "GEMINI_API_KEY"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:           "0.0.0.0",
			Port:         3000,
			AllowOrigins: []string{"*"},
			ShutdownWait: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Provider: ProviderConfig{
			Type:      "gemini",
			ModelName: DefaultModelName,
			APIKeyEnv: DefaultAPIKeyEnv,
		},
		Image: ImageConfig{
			MaxFileSize: 20 * 1024 * 1024,
			MaxPixels:   100_000_000,
			MaxWidth:    16384,
			MaxHeight:   16384,
		},
		Observability: ObservabilityConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
		},
	}
}
