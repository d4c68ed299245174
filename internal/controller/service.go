package controller

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/vid_agent/internal/events"
	"github.com/dgnsrekt/vid_agent/internal/registry"
	"github.com/dgnsrekt/vid_agent/internal/storage"
	"github.com/dgnsrekt/vid_agent/internal/types"
)

// Toggle is the persisted detection switch.
type Toggle interface {
	Enabled() bool
	Set(enabled bool)
}

// TabDirectory resolves attached browser tabs.
type TabDirectory interface {
	GetByStringID(tabID string) (*types.TabInfo, bool)
	List() []types.TabInfo
}

// Downloader fetches detected videos.
type Downloader interface {
	Start(tabID, rawURL string, headers map[string]string) (storage.DownloadJob, error)
	List() []storage.DownloadJob
}

// VideosResult answers getDetectedVideos.
type VideosResult struct {
	Videos   []types.CandidateRecord `json:"videos"`
	Disabled bool                    `json:"disabled,omitempty"`
}

// ClearResult answers clearDetectedVideos.
type ClearResult struct {
	Success  bool `json:"success"`
	Disabled bool `json:"disabled,omitempty"`
}

// ToggleResult answers setVideoDownloaderEnabled.
type ToggleResult struct {
	Success bool `json:"success"`
	Enabled bool `json:"enabled"`
}

// TabVideos summarises a tab for listing.
type TabVideos struct {
	TabID     string `json:"tab_id"`
	BrowserID string `json:"browser_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Attached  bool   `json:"attached"`
	Count     int    `json:"count"`
}

// Service is the control interface over the video registry and toggle.
// All methods are safe for concurrent use.
type Service struct {
	registry   *registry.Registry
	toggle     Toggle
	tabs       TabDirectory
	downloader Downloader
	broker     *events.Broker
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

func WithTabs(tabs TabDirectory) ServiceOption {
	return func(s *Service) { s.tabs = tabs }
}

func WithDownloader(d Downloader) ServiceOption {
	return func(s *Service) { s.downloader = d }
}

func WithBroker(b *events.Broker) ServiceOption {
	return func(s *Service) { s.broker = b }
}

func NewService(reg *registry.Registry, toggle Toggle, opts ...ServiceOption) *Service {
	s := &Service{registry: reg, toggle: toggle}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) requireTabID(tabID string) (string, error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return "", newError(CodeValidation, "tab_id is required", nil)
	}
	return tabID, nil
}

// GetDetectedVideos returns the tab's records, or an empty list flagged
// disabled while detection is off.
func (s *Service) GetDetectedVideos(ctx context.Context, tabID string) (VideosResult, error) {
	tabID, err := s.requireTabID(tabID)
	if err != nil {
		return VideosResult{}, err
	}
	if !s.toggle.Enabled() {
		return VideosResult{Videos: []types.CandidateRecord{}, Disabled: true}, nil
	}
	return VideosResult{Videos: s.registry.List(tabID)}, nil
}

// ClearDetectedVideos empties the tab's records. It clears even while
// detection is disabled and reports that state.
func (s *Service) ClearDetectedVideos(ctx context.Context, tabID string) (ClearResult, error) {
	tabID, err := s.requireTabID(tabID)
	if err != nil {
		return ClearResult{}, err
	}
	s.registry.Clear(tabID)
	s.broker.Publish(events.Event{Type: events.TypeVideosCleared, TabID: tabID})
	slog.Info("Detected videos cleared", "tab_id", tabID)
	return ClearResult{Success: true, Disabled: !s.toggle.Enabled()}, nil
}

// SetEnabled flips detection on or off. Stored records are kept.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) (ToggleResult, error) {
	s.toggle.Set(enabled)
	s.broker.Publish(events.Event{Type: events.TypeToggleChanged, Data: map[string]bool{"enabled": enabled}})
	slog.Info("Video detection toggled", "enabled", enabled)
	return ToggleResult{Success: true, Enabled: s.toggle.Enabled()}, nil
}

func (s *Service) GetEnabled(ctx context.Context) (bool, error) {
	return s.toggle.Enabled(), nil
}

// ListTabs merges attached tabs with tabs that still hold records.
func (s *Service) ListTabs(ctx context.Context) ([]TabVideos, error) {
	byID := make(map[string]*TabVideos)
	var order []string

	if s.tabs != nil {
		for _, info := range s.tabs.List() {
			byID[info.TargetID] = &TabVideos{TabID: info.TargetID, BrowserID: info.BrowserID, URL: info.URL, Attached: true}
			order = append(order, info.TargetID)
		}
	}
	for _, summary := range s.registry.Tabs() {
		tv, ok := byID[summary.TabID]
		if !ok {
			tv = &TabVideos{TabID: summary.TabID}
			byID[summary.TabID] = tv
			order = append(order, summary.TabID)
		}
		tv.Count = summary.Count
	}

	out := make([]TabVideos, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// TabClosed drops every record of a tab that went away.
func (s *Service) TabClosed(tabID string) {
	if s.registry.RemoveTab(tabID) {
		slog.Info("Removed videos of closed tab", "tab_id", tabID)
	}
	s.broker.Publish(events.Event{Type: events.TypeTabRemoved, TabID: tabID})
}

// DownloadVideo starts a download of a URL previously detected on tabID.
// Like GetDetectedVideos it sees no records while detection is disabled.
func (s *Service) DownloadVideo(ctx context.Context, tabID, rawURL string) (storage.DownloadJob, error) {
	tabID, err := s.requireTabID(tabID)
	if err != nil {
		return storage.DownloadJob{}, err
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return storage.DownloadJob{}, newError(CodeValidation, "url is required", nil)
	}
	if s.downloader == nil {
		return storage.DownloadJob{}, newError(CodeUnavailable, "downloads are not configured", nil)
	}
	if !s.toggle.Enabled() {
		return storage.DownloadJob{}, newError(CodeUnavailable, "video detection is disabled", nil)
	}

	found := false
	for _, rec := range s.registry.List(tabID) {
		if rec.URL == rawURL {
			found = true
			break
		}
	}
	if !found {
		return storage.DownloadJob{}, newError(CodeVideoNotFound, "url was not detected on tab "+tabID, nil)
	}

	headers := map[string]string{}
	if s.tabs != nil {
		if info, ok := s.tabs.GetByStringID(tabID); ok && info.URL != "" {
			headers["Referer"] = info.URL
		}
	}

	job, err := s.downloader.Start(tabID, rawURL, headers)
	if err != nil {
		return storage.DownloadJob{}, newError(CodeDownloadFailed, "download could not be started", err)
	}
	return job, nil
}

func (s *Service) ListDownloads(ctx context.Context) ([]storage.DownloadJob, error) {
	if s.downloader == nil {
		return []storage.DownloadJob{}, nil
	}
	return s.downloader.List(), nil
}
