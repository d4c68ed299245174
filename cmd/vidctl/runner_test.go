package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgnsrekt/vid_agent/internal/controlclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func runCLI(t *testing.T, handler http.HandlerFunc, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	runner := NewRunner(controlclient.New(srv.URL, 0), &out)
	app := &cli.Command{Name: "vidctl", Commands: runner.register()}
	err := app.Run(context.Background(), append([]string{"vidctl"}, args...))
	return out.String(), err
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestListPrintsVideos(t *testing.T) {
	out, err := runCLI(t, jsonReply(`{"videos":[{"url":"https://site.com/a.m3u8","timestamp":"2026-01-02T03:04:05Z","origin":"network_body"}]}`), "list", "T1")
	require.NoError(t, err)
	assert.Contains(t, out, "https://site.com/a.m3u8")
	assert.Contains(t, out, "network_body")
}

func TestListDisabled(t *testing.T) {
	out, err := runCLI(t, jsonReply(`{"videos":[],"disabled":true}`), "list", "T1")
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")
}

func TestListRequiresTab(t *testing.T) {
	_, err := runCLI(t, jsonReply(`{}`), "list")
	require.Error(t, err)
}

func TestDisable(t *testing.T) {
	var got map[string]bool
	handler := func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		jsonReply(`{"success":true,"enabled":false}`)(w, r)
	}
	out, err := runCLI(t, handler, "disable")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"enabled": false}, got)
	assert.Contains(t, out, "video detection disabled")
}

func TestSendMessage(t *testing.T) {
	var got map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/messages", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		jsonReply(`{"success":true,"enabled":true}`)(w, r)
	}
	out, err := runCLI(t, handler, "send", "--enabled", "setVideoDownloaderEnabled")
	require.NoError(t, err)
	assert.Equal(t, "setVideoDownloaderEnabled", got["action"])
	assert.Equal(t, true, got["enabled"])
	assert.Contains(t, out, `"success": true`)
}

func TestAPIErrorSurfaces(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title":"Bad Request","status":400,"detail":"tab_id is required"}`))
	}
	_, err := runCLI(t, handler, "clear", "T1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tab_id is required")
}
