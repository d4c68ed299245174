package storage

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/vid_agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://site.com/media/movie.mp4?x=1": "movie.mp4",
		"https://site.com/":                    "video",
		"https://site.com":                     "video",
		"https://site.com/a/b%3Ac.m3u8":        "b_c.m3u8",
		"::not a url":                          "video",
	}
	for in, want := range tests {
		assert.Equal(t, want, FilenameFromURL(in), in)
	}
}

func TestBrowserIDFromTargetID(t *testing.T) {
	assert.Equal(t, "B0D5A8E8", BrowserIDFromTargetID("B0D5A8E8C7F6"))
	assert.Equal(t, "abc", BrowserIDFromTargetID("abc"))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestJSONLWriterFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLWriter(dir, "videos", "TAB00001", 16, 10)
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.Write(map[string]string{"url": "https://a/1.mp4"}))
	require.NoError(t, w.Write(map[string]string{"url": "https://a/2.mp4"}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	lines := readLines(t, filepath.Join(dir, "2025-03-01", "videos", "TAB00001.jsonl"))
	assert.Len(t, lines, 2)
	assert.ErrorIs(t, w.Write("late"), ErrWriterClosed)
}

func TestJournalAppend(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, 16, 10)

	entry := types.JournalEntry{
		TabID:     "B0D5A8E8C7F6",
		BrowserID: "B0D5A8E8",
		CandidateRecord: types.CandidateRecord{
			URL:       "https://site.com/movie.mp4",
			Timestamp: time.Now().UTC(),
			Origin:    types.OriginNetworkBody,
		},
	}
	require.NoError(t, j.Append(entry))
	require.NoError(t, j.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "*", "videos", "B0D5A8E8.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	lines := readLines(t, matches[0])
	require.Len(t, lines, 1)
	var got types.JournalEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "https://site.com/movie.mp4", got.URL)
	assert.Equal(t, types.OriginNetworkBody, got.Origin)
}

func waitJob(t *testing.T, d *Downloader, id string) DownloadJob {
	t.Helper()
	var job DownloadJob
	require.Eventually(t, func() bool {
		job, _ = d.Get(id)
		return job.Status == DownloadCompleted || job.Status == DownloadFailed
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestDownloaderCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://site.com/watch", r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("fake-mp4-bytes"))
	}))
	defer srv.Close()

	var mu sync.Mutex
	var statuses []string
	dir := t.TempDir()
	d := NewDownloader(dir, 0, func(j DownloadJob) {
		mu.Lock()
		statuses = append(statuses, j.Status)
		mu.Unlock()
	})
	defer d.Close()

	job, err := d.Start("T1", srv.URL+"/media/movie.mp4", map[string]string{"Referer": "https://site.com/watch"})
	require.NoError(t, err)
	assert.Equal(t, DownloadPending, job.Status)
	assert.Equal(t, filepath.Join(dir, "movie.mp4"), job.Path)

	done := waitJob(t, d, job.ID)
	assert.Equal(t, DownloadCompleted, done.Status)
	assert.Equal(t, int64(len("fake-mp4-bytes")), done.Bytes)
	require.NotNil(t, done.FinishedAt)

	data, err := os.ReadFile(done.Path)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp4-bytes", string(data))

	mu.Lock()
	assert.Equal(t, []string{DownloadPending, DownloadRunning, DownloadCompleted}, statuses)
	mu.Unlock()

	second, err := d.Start("T1", srv.URL+"/media/movie.mp4", nil)
	require.NoError(t, err)
	assert.NotEqual(t, done.Path, second.Path, "existing file is not overwritten")
	waitJob(t, d, second.ID)
	assert.Len(t, d.List(), 2)
}

func TestDownloaderReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, 0, nil)
	defer d.Close()

	job, err := d.Start("T1", srv.URL+"/gone.mp4", nil)
	require.NoError(t, err)

	done := waitJob(t, d, job.ID)
	assert.Equal(t, DownloadFailed, done.Status)
	assert.Contains(t, done.Error, "404")
	_, statErr := os.Stat(done.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloaderRejectsAfterClose(t *testing.T) {
	d := NewDownloader(t.TempDir(), 0, nil)
	d.Close()
	_, err := d.Start("T1", "https://site.com/a.mp4", nil)
	assert.ErrorIs(t, err, ErrDownloaderClosed)
}

func TestDownloaderConcurrentSameURLGetDistinctPaths(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, 0, nil)
	defer d.Close()

	first, err := d.Start("T1", srv.URL+"/movie.mp4", nil)
	require.NoError(t, err)
	second, err := d.Start("T1", srv.URL+"/movie.mp4", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Path, second.Path)
	close(release)

	a := waitJob(t, d, first.ID)
	b := waitJob(t, d, second.ID)
	assert.Equal(t, DownloadCompleted, a.Status)
	assert.Equal(t, DownloadCompleted, b.Status)
	for _, path := range []string{a.Path, b.Path} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))
	}
}

func TestDownloaderStartRacingClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir(), 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Start("T1", srv.URL+"/a.mp4", nil); err != nil {
				assert.ErrorIs(t, err, ErrDownloaderClosed)
			}
		}()
	}
	d.Close()
	wg.Wait()

	for _, job := range d.List() {
		assert.NotEqual(t, DownloadRunning, job.Status)
	}
}
