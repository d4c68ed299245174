// Package notify pushes short plain-text messages to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/vid_agent/internal/storage"
	"github.com/go-resty/resty/v2"
)

// Notifier posts messages to a single ntfy endpoint.
type Notifier struct {
	endpoint string
	client   *resty.Client
}

// New returns nil for an empty endpoint; a nil Notifier drops every message.
func New(endpoint string) *Notifier {
	if endpoint == "" {
		return nil
	}
	return &Notifier{
		endpoint: endpoint,
		client:   resty.New().SetTimeout(10 * time.Second),
	}
}

// Send posts message with an optional ntfy title.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if n == nil {
		return nil
	}
	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(message)
	if title != "" {
		req.SetHeader("Title", title)
	}
	resp, err := req.Post(n.endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode())
	}
	return nil
}

// DownloadFinished reports terminal download states and ignores the rest.
func (n *Notifier) DownloadFinished(job storage.DownloadJob) {
	if n == nil {
		return
	}
	var title, msg string
	switch job.Status {
	case storage.DownloadCompleted:
		title = "Video downloaded"
		msg = fmt.Sprintf("%s (%d bytes)", job.Path, job.Bytes)
	case storage.DownloadFailed:
		title = "Video download failed"
		msg = fmt.Sprintf("%s: %s", job.URL, job.Error)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.Send(ctx, title, msg); err != nil {
		slog.Warn("download notification failed", "job_id", job.ID, "error", err)
	}
}
