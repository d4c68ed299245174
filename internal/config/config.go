package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the video sniffer service.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Optional local browser
	LaunchBrowser     bool
	BrowserProfileDir string
	BrowserStartURL   string
	BrowserHeadless   bool

	// Control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Tab matching
	TabURLFilter string

	// Detection
	RulesFile            string
	MaxPerTab            int
	MaxAgeMinutes        int
	SweepIntervalMinutes int

	// Storage
	DataDir         string
	DownloadDir     string
	Journal         bool
	BufferSize      int
	MaxFileSizeMB   int
	DownloadRetries int

	// Notifications
	NtfyURL string

	// Logging
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
		CDPPort:              getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		LaunchBrowser:        getEnvBoolOrDefault("SNIFFER_LAUNCH_BROWSER", false),
		BrowserProfileDir:    getEnvOrDefault("SNIFFER_BROWSER_PROFILE_DIR", "./sniffer_data/profile"),
		BrowserStartURL:      getEnvOrDefault("SNIFFER_BROWSER_START_URL", "about:blank"),
		BrowserHeadless:      getEnvBoolOrDefault("SNIFFER_BROWSER_HEADLESS", false),
		BindAddr:             getEnvOrDefault("SNIFFER_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:       getEnvListOrDefault("SNIFFER_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback:     getEnvBoolOrDefault("SNIFFER_PORT_AUTO_FALLBACK", true),
		TabURLFilter:         getEnvOrDefault("SNIFFER_TAB_URL_FILTER", ""),
		RulesFile:            getEnvOrDefault("SNIFFER_RULES_FILE", ""),
		MaxPerTab:            getEnvIntOrDefault("SNIFFER_MAX_PER_TAB", 50),
		MaxAgeMinutes:        getEnvIntOrDefault("SNIFFER_MAX_AGE_MINUTES", 30),
		SweepIntervalMinutes: getEnvIntOrDefault("SNIFFER_SWEEP_INTERVAL_MINUTES", 5),
		DataDir:              getEnvOrDefault("SNIFFER_DATA_DIR", "./sniffer_data"),
		DownloadDir:          getEnvOrDefault("SNIFFER_DOWNLOAD_DIR", "./downloads"),
		Journal:              getEnvBoolOrDefault("SNIFFER_JOURNAL", true),
		BufferSize:           getEnvIntOrDefault("SNIFFER_BUFFER_SIZE", 1000),
		MaxFileSizeMB:        getEnvIntOrDefault("SNIFFER_MAX_FILE_SIZE_MB", 50),
		DownloadRetries:      getEnvIntOrDefault("SNIFFER_DOWNLOAD_RETRIES", 3),
		NtfyURL:              getEnvOrDefault("SNIFFER_NTFY_URL", ""),
		LogLevel:             strings.ToLower(getEnvOrDefault("SNIFFER_LOG_LEVEL", "info")),
		LogFile:              getEnvOrDefault("SNIFFER_LOG_FILE", "logs/sniffer.log"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxPerTab < 1 {
		return fmt.Errorf("SNIFFER_MAX_PER_TAB must be >= 1, got %d", c.MaxPerTab)
	}
	if c.MaxAgeMinutes < 1 {
		return fmt.Errorf("SNIFFER_MAX_AGE_MINUTES must be >= 1, got %d", c.MaxAgeMinutes)
	}
	if c.SweepIntervalMinutes < 1 {
		return fmt.Errorf("SNIFFER_SWEEP_INTERVAL_MINUTES must be >= 1, got %d", c.SweepIntervalMinutes)
	}
	return nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// SettingsPath is where the persisted toggles live.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "settings.json")
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

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
