package core

import (
	"time"
)

type Config struct {
	Catalog  CatalogConfig
	Frame    FrameConfig
	Scancode ScancodeConfig
	Server   ServerConfig
	Log      LogConfig
}

type CatalogConfig struct {
	ClientID     string
	ClientSecret string
	CacheSize    int
	CacheTTL     time.Duration
}

type FrameConfig struct {
	ContentWidth  int
	CaptureScale  int
	DebounceDelay time.Duration
	PaletteCache  int
	SessionTTL    time.Duration
}

type ScancodeConfig struct {
	Host string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BaseURL      string
	ExportDir    string
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			CacheSize: 512,
			CacheTTL:  5 * time.Minute,
		},
		Frame: FrameConfig{
			ContentWidth:  640,
			CaptureScale:  2,
			DebounceDelay: 300 * time.Millisecond,
			PaletteCache:  128,
			SessionTTL:    30 * time.Minute,
		},
		Scancode: ScancodeConfig{
			Host: "scannables.scdn.co",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			BaseURL:      "http://localhost:8080",
			ExportDir:    "exports",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
