package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DownloadPending   = "pending"
	DownloadRunning   = "running"
	DownloadCompleted = "completed"
	DownloadFailed    = "failed"
)

var ErrDownloaderClosed = errors.New("downloader closed")

// DownloadJob tracks one video download.
type DownloadJob struct {
	ID         string     `json:"id"`
	TabID      string     `json:"tab_id"`
	URL        string     `json:"url"`
	Path       string     `json:"path"`
	Status     string     `json:"status"`
	Bytes      int64      `json:"bytes"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Downloader fetches detected videos into a directory in the background.
type Downloader struct {
	dir      string
	client   *retryablehttp.Client
	onUpdate func(DownloadJob)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*DownloadJob
	closed bool
}

// NewDownloader creates a Downloader writing into dir. onUpdate, when
// non-nil, is called on every job status change.
func NewDownloader(dir string, retries int, onUpdate func(DownloadJob)) *Downloader {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 10 * time.Second
	client.Logger = nil

	ctx, cancel := context.WithCancel(context.Background())
	return &Downloader{
		dir:      dir,
		client:   client,
		onUpdate: onUpdate,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*DownloadJob),
	}
}

// Start queues a download of rawURL on behalf of tabID.
func (d *Downloader) Start(tabID, rawURL string, headers map[string]string) (DownloadJob, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return DownloadJob{}, fmt.Errorf("download dir %s: %w", d.dir, err)
	}

	id := uuid.NewString()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return DownloadJob{}, ErrDownloaderClosed
	}
	job := &DownloadJob{
		ID:        id,
		TabID:     tabID,
		URL:       rawURL,
		Path:      d.targetPathLocked(id, rawURL),
		Status:    DownloadPending,
		StartedAt: time.Now().UTC(),
	}
	d.jobs[id] = job
	snapshot := *job
	d.wg.Add(1)
	d.mu.Unlock()

	d.notify(snapshot)
	go d.run(id, headers)
	return snapshot, nil
}

// Get returns a job by ID.
func (d *Downloader) Get(id string) (DownloadJob, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	job, ok := d.jobs[id]
	if !ok {
		return DownloadJob{}, false
	}
	return *job, true
}

// List returns all jobs, newest first.
func (d *Downloader) List() []DownloadJob {
	d.mu.RLock()
	out := make([]DownloadJob, 0, len(d.jobs))
	for _, job := range d.jobs {
		out = append(out, *job)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Close rejects new jobs, cancels running downloads and waits for them to exit.
func (d *Downloader) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

// targetPathLocked picks a file name that neither exists on disk nor belongs
// to another job. d.mu must be held.
func (d *Downloader) targetPathLocked(id, rawURL string) string {
	name := FilenameFromURL(rawURL)
	path := filepath.Join(d.dir, name)
	if d.pathTakenLocked(path) {
		path = filepath.Join(d.dir, id[:8]+"_"+name)
	}
	return path
}

func (d *Downloader) pathTakenLocked(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	for _, job := range d.jobs {
		if job.Path == path {
			return true
		}
	}
	return false
}

func (d *Downloader) run(id string, headers map[string]string) {
	defer d.wg.Done()

	d.update(id, func(j *DownloadJob) { j.Status = DownloadRunning })
	job, _ := d.Get(id)

	n, err := d.fetch(job.URL, job.Path, headers)
	now := time.Now().UTC()
	d.update(id, func(j *DownloadJob) {
		j.Bytes = n
		j.FinishedAt = &now
		if err != nil {
			j.Status = DownloadFailed
			j.Error = err.Error()
			return
		}
		j.Status = DownloadCompleted
	})

	if err != nil {
		slog.Warn("Video download failed", "id", id, "url", job.URL, "error", err)
		return
	}
	slog.Info("Video downloaded", "id", id, "path", job.Path, "bytes", n)
}

func (d *Downloader) fetch(rawURL, path string, headers map[string]string) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(d.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			slog.Debug("partial download cleanup failed", "path", tmp, "error", rmErr)
		}
		return n, fmt.Errorf("write %s: %w", path, copyErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		return n, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return n, nil
}

func (d *Downloader) update(id string, fn func(*DownloadJob)) {
	d.mu.Lock()
	job, ok := d.jobs[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	fn(job)
	snapshot := *job
	d.mu.Unlock()
	d.notify(snapshot)
}

func (d *Downloader) notify(job DownloadJob) {
	if d.onUpdate != nil {
		d.onUpdate(job)
	}
}
