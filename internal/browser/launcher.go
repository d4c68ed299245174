// Package browser starts a local Chromium with remote debugging enabled so the
// sniffer has something to attach to.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var ErrNoBrowser = errors.New("no supported browser found")

var browserCandidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

const macChromePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"

// Config holds browser launch settings.
type Config struct {
	CDPAddress string
	CDPPort    int
	ProfileDir string
	StartURL   string
	Headless   bool
	ReadyWait  time.Duration
}

// Launcher owns a browser process it started. A Launcher that found the CDP
// port already served owns nothing and Stop is a no-op.
type Launcher struct {
	cfg      Config
	lookPath func(string) (string, error)
	cmd      *exec.Cmd
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.ReadyWait <= 0 {
		cfg.ReadyWait = 15 * time.Second
	}
	return &Launcher{cfg: cfg, lookPath: exec.LookPath}
}

func (l *Launcher) findBinary() (string, error) {
	for _, name := range browserCandidates {
		if path, err := l.lookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		if _, err := os.Stat(macChromePath); err == nil {
			return macChromePath, nil
		}
	}
	return "", ErrNoBrowser
}

func (l *Launcher) args() []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--user-data-dir=" + l.cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--autoplay-policy=no-user-gesture-required",
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new")
	}
	if l.cfg.StartURL != "" {
		args = append(args, l.cfg.StartURL)
	}
	return args
}

func (l *Launcher) cdpAddr() string {
	return net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

func (l *Launcher) cdpServing() bool {
	conn, err := net.DialTimeout("tcp", l.cdpAddr(), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Launch starts the browser unless something already serves the CDP port,
// then waits for /json/version to answer.
func (l *Launcher) Launch(ctx context.Context) error {
	if l.cdpServing() {
		slog.Info("CDP endpoint already serving, not launching a browser", "addr", l.cdpAddr())
		return nil
	}

	bin, err := l.findBinary()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	cmd := exec.Command(bin, l.args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	l.cmd = cmd
	slog.Info("browser started", "path", bin, "pid", cmd.Process.Pid, "headless", l.cfg.Headless)

	if err := l.waitReady(ctx); err != nil {
		l.Stop()
		return err
	}
	slog.Info("CDP endpoint ready", "addr", l.cdpAddr())
	return nil
}

func (l *Launcher) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReadyWait)
	defer cancel()

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.RetryMax = int(l.cfg.ReadyWait / client.RetryWaitMin)
	client.HTTPClient.Timeout = time.Second

	url := "http://" + l.cdpAddr() + "/json/version"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("CDP not ready at %s: %w", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("CDP not ready at %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// Owned reports whether this launcher started the browser process.
func (l *Launcher) Owned() bool {
	return l.cmd != nil
}

// Stop sends SIGTERM to a browser this launcher started, then SIGKILL after 5s.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil {
		return
	}
	pid := l.cmd.Process.Pid
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("browser stopped", "pid", pid)
	case <-time.After(5 * time.Second):
		slog.Warn("browser ignored SIGTERM, killing", "pid", pid)
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.cmd = nil
}
