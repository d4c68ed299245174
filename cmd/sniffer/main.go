package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/vid_agent/internal/api"
	"github.com/dgnsrekt/vid_agent/internal/browser"
	"github.com/dgnsrekt/vid_agent/internal/capture"
	"github.com/dgnsrekt/vid_agent/internal/cdp"
	"github.com/dgnsrekt/vid_agent/internal/config"
	"github.com/dgnsrekt/vid_agent/internal/controller"
	"github.com/dgnsrekt/vid_agent/internal/detect"
	"github.com/dgnsrekt/vid_agent/internal/events"
	"github.com/dgnsrekt/vid_agent/internal/netutil"
	"github.com/dgnsrekt/vid_agent/internal/notify"
	"github.com/dgnsrekt/vid_agent/internal/registry"
	"github.com/dgnsrekt/vid_agent/internal/settings"
	"github.com/dgnsrekt/vid_agent/internal/storage"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("sniffer config loaded",
		"cdp_url", cfg.GetCDPURL(),
		"bind_addr", cfg.BindAddr,
		"tab_url_filter", cfg.TabURLFilter,
		"max_per_tab", cfg.MaxPerTab,
		"max_age", cfg.MaxAge(),
		"sweep_interval", cfg.SweepInterval(),
		"data_dir", cfg.DataDir,
		"journal", cfg.Journal,
		"log_level", cfg.LogLevel,
	)

	rules, err := detect.LoadRules(cfg.RulesFile)
	if err != nil {
		slog.Error("failed to load detection rules", "path", cfg.RulesFile, "error", err)
		os.Exit(1)
	}

	store, err := settings.NewStore(cfg.SettingsPath())
	if err != nil {
		// Unreadable settings fall back to detection enabled.
		slog.Warn("settings unreadable, using defaults", "path", cfg.SettingsPath(), "error", err)
	}
	toggle := settings.NewToggle(store, settings.KeyVideoDownloaderEnabled)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	reg := registry.New(cfg.MaxPerTab, cfg.MaxAge())
	reg.StartSweep(cfg.SweepInterval())
	defer reg.Close()

	broker := events.NewBroker()
	tabs := cdp.NewTabRegistry()

	observerOpts := []capture.ObserverOption{
		capture.WithBroker(broker),
		capture.WithTabInfo(tabs),
	}
	if cfg.Journal {
		journal := storage.NewJournal(cfg.DataDir, cfg.BufferSize, cfg.MaxFileSizeMB)
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Warn("journal close failed", "error", err)
			}
		}()
		observerOpts = append(observerOpts, capture.WithJournal(journal))
	}
	observer := capture.NewVideoObserver(rules, reg, toggle, observerOpts...)

	notifier := notify.New(cfg.NtfyURL)
	downloader := storage.NewDownloader(cfg.DownloadDir, cfg.DownloadRetries, func(job storage.DownloadJob) {
		broker.Publish(events.Event{Type: events.TypeDownload, TabID: job.TabID, Data: job})
		notifier.DownloadFinished(job)
	})
	defer downloader.Close()

	svc := controller.NewService(reg, toggle,
		controller.WithTabs(tabs),
		controller.WithDownloader(downloader),
		controller.WithBroker(broker),
	)

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.BrowserProfileDir,
			StartURL:   cfg.BrowserStartURL,
			Headless:   cfg.BrowserHeadless,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	cdpClient := cdp.NewClient(cfg, observer, svc, tabs)
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.GetCDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = cdpClient.Close() }()

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc, broker)}

	go func() {
		slog.Info("sniffer listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("sniffer server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down", "tabs", cdpClient.GetTabCount(), "tracked_tabs", reg.TabCount())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("sniffer shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
