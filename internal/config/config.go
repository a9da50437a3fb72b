package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for authscope.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Tab matching and behavior
	TabURLFilter   string
	ReloadOnAttach bool

	// Browser launch for watch --launch
	LaunchBrowser     bool
	BrowserProfileDir string
	BrowserStartURL   string

	// API server
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Request archive; an empty ArchiveDir disables it
	ArchiveDir           string
	ArchiveMaxFileSizeMB int
	ArchiveBufferSize    int

	// HAR polling
	RefreshInterval time.Duration

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:           getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:              getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		TabURLFilter:         getEnvOrDefault("AUTHSCOPE_TAB_URL_FILTER", ""),
		ReloadOnAttach:       getEnvBoolOrDefault("AUTHSCOPE_RELOAD_ON_ATTACH", false),
		LaunchBrowser:        getEnvBoolOrDefault("AUTHSCOPE_LAUNCH_BROWSER", false),
		BrowserProfileDir:    getEnvOrDefault("AUTHSCOPE_BROWSER_PROFILE_DIR", "./browser_profile"),
		BrowserStartURL:      getEnvOrDefault("AUTHSCOPE_BROWSER_START_URL", "about:blank"),
		BindAddr:             getEnvOrDefault("AUTHSCOPE_BIND_ADDR", "127.0.0.1:8290"),
		PortCandidates:       getEnvListOrDefault("AUTHSCOPE_PORT_CANDIDATES", []string{"127.0.0.1:8291", "127.0.0.1:8292", "127.0.0.1:8293"}),
		PortAutoFallback:     getEnvBoolOrDefault("AUTHSCOPE_PORT_AUTO_FALLBACK", true),
		ArchiveMaxFileSizeMB: getEnvIntOrDefault("AUTHSCOPE_ARCHIVE_MAX_FILE_SIZE_MB", 50),
		ArchiveBufferSize:    getEnvIntOrDefault("AUTHSCOPE_ARCHIVE_BUFFER_SIZE", 1000),
		RefreshInterval:      getEnvDurationOrDefault("AUTHSCOPE_REFRESH_INTERVAL", 5*time.Second),
		LogLevel:             strings.ToLower(getEnvOrDefault("AUTHSCOPE_LOG_LEVEL", "info")),
		LogFile:              getEnvOrDefault("AUTHSCOPE_LOG_FILE", "logs/authscope.log"),
	}

	cfg.ArchiveDir = "./authscope_data"
	if val, ok := os.LookupEnv("AUTHSCOPE_ARCHIVE_DIR"); ok {
		cfg.ArchiveDir = val
	}

	if cfg.CDPPort <= 0 || cfg.CDPPort > 65535 {
		return nil, fmt.Errorf("CHROMIUM_CDP_PORT out of range: %d", cfg.CDPPort)
	}
	if cfg.ArchiveBufferSize < 1 {
		cfg.ArchiveBufferSize = 1
	}
	return cfg, nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvListOrDefault splits a comma separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
