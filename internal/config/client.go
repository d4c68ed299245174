package config

import "time"

// MinClientTimeout is the floor for control API calls.
const MinClientTimeout = 5 * time.Second

// ClientConfig holds configuration for the vidctl command-line client.
type ClientConfig struct {
	BaseURL   string
	TimeoutMS int
}

// LoadClient reads client configuration from environment variables.
func LoadClient() *ClientConfig {
	cfg := &ClientConfig{
		BaseURL:   getEnvOrDefault("VIDCTL_BASE_URL", "http://127.0.0.1:8190"),
		TimeoutMS: getEnvIntOrDefault("VIDCTL_TIMEOUT_MS", 5000),
	}
	if cfg.TimeoutMS < int(MinClientTimeout/time.Millisecond) {
		cfg.TimeoutMS = int(MinClientTimeout / time.Millisecond)
	}
	return cfg
}

func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
