package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/vid_agent/internal/detect"
	"github.com/dgnsrekt/vid_agent/internal/events"
	"github.com/dgnsrekt/vid_agent/internal/registry"
	"github.com/dgnsrekt/vid_agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGate struct{ on bool }

func (g *staticGate) Enabled() bool { return g.on }

type memJournal struct {
	mu      sync.Mutex
	entries []types.JournalEntry
}

func (j *memJournal) Append(e types.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

type tabLookup map[string]*types.TabInfo

func (t tabLookup) GetByStringID(id string) (*types.TabInfo, bool) {
	info, ok := t[id]
	return info, ok
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newObserver(gate *staticGate, opts ...ObserverOption) (*VideoObserver, *registry.Registry) {
	reg := registry.New(registry.DefaultMaxPerTab, registry.DefaultMaxAge)
	opts = append([]ObserverOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewVideoObserver(detect.DefaultRules(), reg, gate, opts...), reg
}

func TestObserveURLExampleSequence(t *testing.T) {
	obs, reg := newObserver(&staticGate{on: true})

	assert.False(t, obs.ObserveURL("T1", "https://site.com/media/seg-6-v1-a1.ts"))
	assert.Empty(t, reg.List("T1"))

	assert.True(t, obs.ObserveURL("T1", "https://site.com/media/movie.mp4"))
	got := reg.List("T1")
	require.Len(t, got, 1)
	assert.Equal(t, types.OriginNetworkBody, got[0].Origin)
	assert.Equal(t, fixedNow, got[0].Timestamp)

	assert.False(t, obs.ObserveURL("T1", "https://site.com/media/movie.mp4"))
	assert.Equal(t, 1, reg.Len("T1"))
}

func TestObserveURLDisabled(t *testing.T) {
	gate := &staticGate{on: false}
	obs, reg := newObserver(gate)

	assert.False(t, obs.ObserveURL("T1", "https://site.com/movie.mp4"))
	assert.Equal(t, 0, reg.TabCount())

	gate.on = true
	assert.True(t, obs.ObserveURL("T1", "https://site.com/movie.mp4"))
}

func TestOnRequestWillBeSent(t *testing.T) {
	obs, reg := newObserver(&staticGate{on: true})

	obs.OnRequestWillBeSent("T1", &network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "https://cdn.site.com/hls/master.m3u8", Method: "GET"},
	})
	obs.OnRequestWillBeSent("T1", &network.EventRequestWillBeSent{RequestID: "2"})
	obs.OnRequestWillBeSent("", &network.EventRequestWillBeSent{
		RequestID: "3",
		Request:   &network.Request{URL: "https://cdn.site.com/other.mp4"},
	})

	got := reg.List("T1")
	require.Len(t, got, 1)
	assert.Equal(t, "https://cdn.site.com/hls/master.m3u8", got[0].URL)
	assert.Equal(t, 1, reg.TabCount())
}

func TestOnResponseReceivedHeaderPath(t *testing.T) {
	obs, reg := newObserver(&staticGate{on: true})

	obs.OnResponseReceived("T1", &network.EventResponseReceived{
		RequestID: "1",
		Response: &network.Response{
			URL:     "https://api.site.com/play?id=42",
			Headers: network.Headers{"Content-Type": "Video/MP4"},
		},
	})
	obs.OnResponseReceived("T1", &network.EventResponseReceived{
		RequestID: "2",
		Response: &network.Response{
			URL:      "https://api.site.com/manifest?id=42",
			MimeType: "application/vnd.apple.mpegurl",
		},
	})
	obs.OnResponseReceived("T1", &network.EventResponseReceived{
		RequestID: "3",
		Response: &network.Response{
			URL:     "https://api.site.com/page",
			Headers: network.Headers{"content-type": "text/html"},
		},
	})
	obs.OnResponseReceived("T1", &network.EventResponseReceived{
		RequestID: "4",
		Response: &network.Response{
			URL:     "https://api.site.com/hls/segment3.ts",
			Headers: network.Headers{"content-type": "video/mp2t"},
		},
	})

	got := reg.List("T1")
	require.Len(t, got, 2)
	assert.Equal(t, types.OriginResponseHeader, got[0].Origin)
	assert.Equal(t, "Video/MP4", got[0].ContentType)
	assert.Equal(t, "application/vnd.apple.mpegurl", got[1].ContentType)
}

func TestHeaderPathDedupsAgainstBodyPath(t *testing.T) {
	obs, reg := newObserver(&staticGate{on: true})

	assert.True(t, obs.ObserveURL("T1", "https://site.com/movie.mp4"))
	assert.False(t, obs.ObserveContentType("T1", "https://site.com/movie.mp4", "video/mp4"))

	got := reg.List("T1")
	require.Len(t, got, 1)
	assert.Equal(t, types.OriginNetworkBody, got[0].Origin)
	assert.Empty(t, got[0].ContentType)
}

func TestAcceptedRecordsAreJournaledAndPublished(t *testing.T) {
	journal := &memJournal{}
	broker := events.NewBroker()
	_, ch := broker.Subscribe()
	tabs := tabLookup{"T1": {TargetID: "T1", URL: "https://site.com/watch", BrowserID: "T1"}}

	obs, _ := newObserver(&staticGate{on: true}, WithJournal(journal), WithBroker(broker), WithTabInfo(tabs))
	require.True(t, obs.ObserveURL("T1", "https://site.com/movie.webm"))
	obs.ObserveURL("T1", "https://site.com/movie.webm")

	require.Len(t, journal.entries, 1)
	assert.Equal(t, "https://site.com/watch", journal.entries[0].PageURL)
	assert.Equal(t, "T1", journal.entries[0].BrowserID)

	select {
	case evt := <-ch:
		assert.Equal(t, events.TypeVideoDetected, evt.Type)
		assert.Equal(t, "T1", evt.TabID)
	case <-time.After(time.Second):
		t.Fatal("expected video_detected event")
	}
	assert.Len(t, ch, 0)
}

type panicJournal struct{}

func (panicJournal) Append(types.JournalEntry) error { panic("disk on fire") }

func TestClassificationPanicIsContained(t *testing.T) {
	obs, reg := newObserver(&staticGate{on: true}, WithJournal(panicJournal{}))

	assert.NotPanics(t, func() {
		assert.False(t, obs.ObserveURL("T1", "https://site.com/movie.mp4"))
	})
	assert.Equal(t, 1, reg.Len("T1"))
}

func TestHeaderValue(t *testing.T) {
	h := network.Headers{"CONTENT-TYPE": "video/webm", "x-num": 5}
	assert.Equal(t, "video/webm", headerValue(h, "content-type"))
	assert.Equal(t, "", headerValue(h, "x-num"))
	assert.Equal(t, "", headerValue(nil, "content-type"))
}
