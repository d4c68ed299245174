package capture

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/vid_agent/internal/detect"
	"github.com/dgnsrekt/vid_agent/internal/events"
	"github.com/dgnsrekt/vid_agent/internal/registry"
	"github.com/dgnsrekt/vid_agent/internal/types"
)

// Gate reports whether detection is currently enabled.
type Gate interface {
	Enabled() bool
}

// Journal persists accepted records.
type Journal interface {
	Append(entry types.JournalEntry) error
}

// VideoObserver classifies observed requests and records candidate videos
// per tab. It only reads events; it never alters the traffic.
type VideoObserver struct {
	rules       *detect.Rules
	registry    *registry.Registry
	gate        Gate
	tabRegistry types.TabInfoProvider
	journal     Journal
	broker      *events.Broker
	now         func() time.Time
}

// ObserverOption customises a VideoObserver.
type ObserverOption func(*VideoObserver)

func WithJournal(j Journal) ObserverOption {
	return func(o *VideoObserver) { o.journal = j }
}

func WithBroker(b *events.Broker) ObserverOption {
	return func(o *VideoObserver) { o.broker = b }
}

func WithTabInfo(p types.TabInfoProvider) ObserverOption {
	return func(o *VideoObserver) { o.tabRegistry = p }
}

func WithClock(now func() time.Time) ObserverOption {
	return func(o *VideoObserver) { o.now = now }
}

func NewVideoObserver(rules *detect.Rules, reg *registry.Registry, gate Gate, opts ...ObserverOption) *VideoObserver {
	o := &VideoObserver{
		rules:    rules,
		registry: reg,
		gate:     gate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnRequestWillBeSent is the network-body path.
func (o *VideoObserver) OnRequestWillBeSent(tabID string, ev *network.EventRequestWillBeSent) {
	if ev == nil || ev.Request == nil {
		return
	}
	o.ObserveURL(tabID, ev.Request.URL)
}

// OnResponseReceived is the header path.
func (o *VideoObserver) OnResponseReceived(tabID string, ev *network.EventResponseReceived) {
	if ev == nil || ev.Response == nil {
		return
	}
	contentType := headerValue(ev.Response.Headers, "content-type")
	if contentType == "" {
		contentType = ev.Response.MimeType
	}
	o.ObserveContentType(tabID, ev.Response.URL, contentType)
}

// ObserveURL records rawURL for tabID when it looks like a video. It reports
// whether a new record was added.
func (o *VideoObserver) ObserveURL(tabID, rawURL string) (added bool) {
	if !o.gate.Enabled() {
		return false
	}
	defer o.recoverClassification(tabID, rawURL, &added)

	verdict := o.rules.ClassifyURL(tabID, rawURL)
	if !verdict.Accept {
		if verdict.Reason == detect.ReasonExcluded {
			slog.Debug("Segment request ignored", "tab_id", tabID, "url", truncateURL(rawURL))
		}
		return false
	}

	return o.record(tabID, types.CandidateRecord{
		URL:       rawURL,
		Timestamp: o.now().UTC(),
		Origin:    types.OriginNetworkBody,
	}, verdict.Reason)
}

// ObserveContentType records rawURL for tabID when contentType denotes a
// video or a streaming manifest.
func (o *VideoObserver) ObserveContentType(tabID, rawURL, contentType string) (added bool) {
	if !o.gate.Enabled() {
		return false
	}
	defer o.recoverClassification(tabID, rawURL, &added)

	if tabID == "" || rawURL == "" {
		return false
	}
	if !o.rules.ClassifyContentType(contentType) {
		return false
	}
	// Segments are served as video/mp2t; the exclude list applies here too.
	if o.rules.IsExcluded(rawURL) {
		return false
	}
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "blob:") || strings.HasPrefix(lower, "data:") {
		return false
	}

	return o.record(tabID, types.CandidateRecord{
		URL:         rawURL,
		Timestamp:   o.now().UTC(),
		Origin:      types.OriginResponseHeader,
		ContentType: contentType,
	}, "content_type")
}

func (o *VideoObserver) record(tabID string, rec types.CandidateRecord, reason string) bool {
	if !o.registry.Record(tabID, rec) {
		return false
	}

	slog.Info("Video detected",
		"tab_id", tabID,
		"origin", rec.Origin,
		"reason", reason,
		"content_type", rec.ContentType,
		"url", truncateURL(rec.URL),
	)

	if o.journal != nil {
		entry := types.JournalEntry{TabID: tabID, CandidateRecord: rec}
		if o.tabRegistry != nil {
			if info, ok := o.tabRegistry.GetByStringID(tabID); ok {
				entry.BrowserID = info.BrowserID
				entry.PageURL = info.URL
			}
		}
		if err := o.journal.Append(entry); err != nil {
			slog.Debug("Video journal append failed", "tab_id", tabID, "error", err)
		}
	}

	o.broker.Publish(events.Event{Type: events.TypeVideoDetected, TabID: tabID, Data: rec})
	return true
}

func (o *VideoObserver) recoverClassification(tabID, rawURL string, added *bool) {
	if r := recover(); r != nil {
		slog.Error("Video classification failed", "tab_id", tabID, "url", truncateURL(rawURL), "error", fmt.Sprint(r))
		*added = false
	}
}

// headerValue looks up a header case-insensitively. CDP delivers headers as
// a JSON object whose values are normally strings.
func headerValue(headers network.Headers, name string) string {
	for k, v := range headers {
		if !strings.EqualFold(k, name) {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
