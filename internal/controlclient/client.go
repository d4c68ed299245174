// Package controlclient talks to the sniffer's HTTP control API.
package controlclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgnsrekt/vid_agent/internal/config"
	"github.com/dgnsrekt/vid_agent/internal/controller"
	"github.com/dgnsrekt/vid_agent/internal/storage"
	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the control API.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("control api %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("control api %d %s", e.Status, e.Title)
}

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type Client struct {
	resty *resty.Client
}

// New builds a client. Timeouts below config.MinClientTimeout are raised
// to it.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout < config.MinClientTimeout {
		timeout = config.MinClientTimeout
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "vidctl/1.0")
	return &Client{resty: r}
}

func NewFromConfig(cfg *config.ClientConfig) *Client {
	return New(cfg.BaseURL, cfg.Timeout())
}

// Timeout reports the effective per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.resty.GetClient().Timeout
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, pathParams map[string]string) error {
	var apiErr problem
	req := c.resty.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr).
		SetPathParams(pathParams)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		title := apiErr.Title
		if title == "" {
			title = http.StatusText(resp.StatusCode())
		}
		return &APIError{Status: resp.StatusCode(), Title: title, Detail: apiErr.Detail}
	}
	return nil
}

func (c *Client) ListTabs(ctx context.Context) ([]controller.TabVideos, error) {
	var out struct {
		Tabs []controller.TabVideos `json:"tabs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tabs", nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Tabs, nil
}

func (c *Client) GetDetectedVideos(ctx context.Context, tabID string) (controller.VideosResult, error) {
	var out controller.VideosResult
	err := c.do(ctx, http.MethodGet, "/api/v1/tabs/{tab_id}/videos", nil, &out, map[string]string{"tab_id": tabID})
	return out, err
}

func (c *Client) ClearDetectedVideos(ctx context.Context, tabID string) (controller.ClearResult, error) {
	var out controller.ClearResult
	err := c.do(ctx, http.MethodDelete, "/api/v1/tabs/{tab_id}/videos", nil, &out, map[string]string{"tab_id": tabID})
	return out, err
}

func (c *Client) GetEnabled(ctx context.Context) (bool, error) {
	var out struct {
		Enabled bool `json:"enabled"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/settings/video-downloader", nil, &out, nil)
	return out.Enabled, err
}

func (c *Client) SetEnabled(ctx context.Context, enabled bool) (controller.ToggleResult, error) {
	var out controller.ToggleResult
	body := map[string]bool{"enabled": enabled}
	err := c.do(ctx, http.MethodPut, "/api/v1/settings/video-downloader", body, &out, nil)
	return out, err
}

// SendMessage posts a raw action envelope and returns the decoded reply.
func (c *Client) SendMessage(ctx context.Context, msg controller.Message) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", msg, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DownloadVideo(ctx context.Context, tabID, rawURL string) (storage.DownloadJob, error) {
	var out storage.DownloadJob
	body := map[string]string{"url": rawURL}
	err := c.do(ctx, http.MethodPost, "/api/v1/tabs/{tab_id}/videos/download", body, &out, map[string]string{"tab_id": tabID})
	return out, err
}

func (c *Client) ListDownloads(ctx context.Context) ([]storage.DownloadJob, error) {
	var out struct {
		Downloads []storage.DownloadJob `json:"downloads"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/downloads", nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Downloads, nil
}
