package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/vid_agent/internal/types"
)

const (
	DefaultMaxPerTab     = 50
	DefaultMaxAge        = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// TabSummary describes one tab's slot in the registry.
type TabSummary struct {
	TabID    string    `json:"tab_id"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// Registry keeps deduplicated candidate records per tab, bounded in count
// and age. Records of a tab are kept in insertion order.
type Registry struct {
	maxPerTab int
	maxAge    time.Duration
	now       func() time.Time

	tabs map[string][]types.CandidateRecord
	mu   sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock overrides the time source used by the sweep.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(maxPerTab int, maxAge time.Duration, opts ...Option) *Registry {
	if maxPerTab <= 0 {
		maxPerTab = DefaultMaxPerTab
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	r := &Registry{
		maxPerTab: maxPerTab,
		maxAge:    maxAge,
		now:       time.Now,
		tabs:      make(map[string][]types.CandidateRecord),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends rec to the tab's sequence unless a record with the same URL
// is already present. It reports whether the record was added.
func (r *Registry) Record(tabID string, rec types.CandidateRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.tabs[tabID]
	for _, existing := range seq {
		if existing.URL == rec.URL {
			return false
		}
	}

	seq = append(seq, rec)
	if over := len(seq) - r.maxPerTab; over > 0 {
		trimmed := make([]types.CandidateRecord, r.maxPerTab)
		copy(trimmed, seq[over:])
		seq = trimmed
	}
	r.tabs[tabID] = seq
	return true
}

// List returns a copy of the tab's records; empty when the tab is unknown.
func (r *Registry) List(tabID string) []types.CandidateRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seq := r.tabs[tabID]
	out := make([]types.CandidateRecord, len(seq))
	copy(out, seq)
	return out
}

// Len returns the number of records held for a tab.
func (r *Registry) Len(tabID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs[tabID])
}

// Clear empties the tab's sequence. The tab slot itself is dropped by the
// next sweep.
func (r *Registry) Clear(tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[tabID]; ok {
		r.tabs[tabID] = nil
	}
}

// RemoveTab deletes the tab's sequence regardless of record age.
func (r *Registry) RemoveTab(tabID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tabs[tabID]
	delete(r.tabs, tabID)
	return ok
}

// EvictExpired drops every record with now - timestamp >= maxAge and then
// every tab left without records. It returns the number of records removed.
func (r *Registry) EvictExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for tabID, seq := range r.tabs {
		kept := seq[:0]
		for _, rec := range seq {
			if now.Sub(rec.Timestamp) >= r.maxAge {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(r.tabs, tabID)
			continue
		}
		r.tabs[tabID] = kept
	}
	return removed
}

// Tabs summarises every tab currently holding a slot, sorted by tab ID.
func (r *Registry) Tabs() []TabSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TabSummary, 0, len(r.tabs))
	for tabID, seq := range r.tabs {
		s := TabSummary{TabID: tabID, Count: len(seq)}
		if len(seq) > 0 {
			s.LastSeen = seq[len(seq)-1].Timestamp
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

// TabCount returns the number of tab slots.
func (r *Registry) TabCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// StartSweep runs EvictExpired every interval until Close is called.
func (r *Registry) StartSweep(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go r.sweepLoop(interval)
}

func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) sweep() {
	removed := r.EvictExpired(r.now())
	if removed > 0 {
		slog.Debug("Expired video records evicted", "removed", removed, "tabs", r.TabCount())
	}
}
