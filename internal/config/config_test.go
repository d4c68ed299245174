package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9220", cfg.GetCDPURL())
	assert.Equal(t, 50, cfg.MaxPerTab)
	assert.Equal(t, 30*time.Minute, cfg.MaxAge())
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval())
	assert.True(t, cfg.Journal)
	assert.Equal(t, "", cfg.TabURLFilter)
	assert.Equal(t, filepath.Join("sniffer_data", "settings.json"), cfg.SettingsPath())
	assert.Len(t, cfg.PortCandidates, 3)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("SNIFFER_MAX_PER_TAB", "10")
	t.Setenv("SNIFFER_JOURNAL", "false")
	t.Setenv("SNIFFER_PORT_CANDIDATES", " 127.0.0.1:1, ,127.0.0.1:2 ")
	t.Setenv("SNIFFER_LOG_LEVEL", "DEBUG")
	t.Setenv("SNIFFER_MAX_AGE_MINUTES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9333, cfg.CDPPort)
	assert.Equal(t, 10, cfg.MaxPerTab)
	assert.False(t, cfg.Journal)
	assert.Equal(t, []string{"127.0.0.1:1", "127.0.0.1:2"}, cfg.PortCandidates)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.MaxAgeMinutes)
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SNIFFER_MAX_PER_TAB", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClientTimeoutFloor(t *testing.T) {
	t.Setenv("VIDCTL_TIMEOUT_MS", "100")
	assert.Equal(t, MinClientTimeout, LoadClient().Timeout())

	t.Setenv("VIDCTL_TIMEOUT_MS", "8000")
	assert.Equal(t, 8*time.Second, LoadClient().Timeout())
}

func TestLoadBrowserAndNotify(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.LaunchBrowser)
	assert.Equal(t, "", cfg.NtfyURL)

	t.Setenv("SNIFFER_LAUNCH_BROWSER", "true")
	t.Setenv("SNIFFER_BROWSER_HEADLESS", "1")
	t.Setenv("SNIFFER_NTFY_URL", "http://ntfy.local/videos")

	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.LaunchBrowser)
	assert.True(t, cfg.BrowserHeadless)
	assert.Equal(t, "http://ntfy.local/videos", cfg.NtfyURL)
}
