package settings

import (
	"log/slog"
	"sync/atomic"
)

// KeyVideoDownloaderEnabled is the persisted detection on/off flag.
const KeyVideoDownloaderEnabled = "videoDownloaderEnabled"

// Toggle caches a boolean setting and follows its change notifications.
type Toggle struct {
	store *Store
	key   string
	value atomic.Bool
}

// NewToggle reads key from store (default true) and keeps the cached value
// in sync with later writes.
func NewToggle(store *Store, key string) *Toggle {
	t := &Toggle{store: store, key: key}
	t.value.Store(store.GetBool(key, true))
	store.Subscribe(func(changed string, v any) {
		if changed != key {
			return
		}
		if b, ok := v.(bool); ok {
			t.value.Store(b)
		}
	})
	return t
}

func (t *Toggle) Enabled() bool {
	return t.value.Load()
}

// Set flips the flag. A persistence failure is logged; the in-memory value
// still changes.
func (t *Toggle) Set(enabled bool) {
	if err := t.store.SetBool(t.key, enabled); err != nil {
		slog.Warn("Failed to persist setting", "key", t.key, "value", enabled, "error", err)
	}
}
