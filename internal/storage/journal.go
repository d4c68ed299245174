package storage

import (
	"log/slog"
	"sync"

	"github.com/dgnsrekt/vid_agent/internal/types"
)

const journalSubDir = "videos"

// Journal keeps one JSONLWriter per browser tab for accepted video records.
type Journal struct {
	baseDir    string
	bufferSize int
	maxSizeMB  int

	writers map[string]*JSONLWriter
	mu      sync.RWMutex
}

func NewJournal(baseDir string, bufferSize, maxSizeMB int) *Journal {
	return &Journal{
		baseDir:    baseDir,
		bufferSize: bufferSize,
		maxSizeMB:  maxSizeMB,
		writers:    make(map[string]*JSONLWriter),
	}
}

// Append queues entry on the writer for its browser ID.
func (j *Journal) Append(entry types.JournalEntry) error {
	name := entry.BrowserID
	if name == "" {
		name = "unknown"
	}
	return j.writer(name).Write(entry)
}

func (j *Journal) writer(name string) *JSONLWriter {
	j.mu.RLock()
	w, ok := j.writers[name]
	j.mu.RUnlock()
	if ok {
		return w
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if w, ok := j.writers[name]; ok {
		return w
	}
	w = NewJSONLWriter(j.baseDir, journalSubDir, name, j.bufferSize, j.maxSizeMB)
	j.writers[name] = w
	slog.Info("Created video journal writer", "browser_id", name)
	return w
}

// Close closes all writers.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var lastErr error
	for name, w := range j.writers {
		if err := w.Close(); err != nil {
			slog.Error("Failed to close journal writer", "browser_id", name, "error", err)
			lastErr = err
		}
	}
	j.writers = make(map[string]*JSONLWriter)
	return lastErr
}
