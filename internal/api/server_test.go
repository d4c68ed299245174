package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/vid_agent/internal/controller"
	"github.com/dgnsrekt/vid_agent/internal/events"
	"github.com/dgnsrekt/vid_agent/internal/storage"
	"github.com/dgnsrekt/vid_agent/internal/types"
)

type stubService struct {
	enabled  bool
	cleared  []string
	messages []controller.Message
	err      error
}

func (s *stubService) ListTabs(ctx context.Context) ([]controller.TabVideos, error) {
	return []controller.TabVideos{{TabID: "T1", Attached: true, Count: 1}}, nil
}

func (s *stubService) GetDetectedVideos(ctx context.Context, tabID string) (controller.VideosResult, error) {
	if s.err != nil {
		return controller.VideosResult{}, s.err
	}
	if !s.enabled {
		return controller.VideosResult{Videos: []types.CandidateRecord{}, Disabled: true}, nil
	}
	return controller.VideosResult{Videos: []types.CandidateRecord{{URL: "https://site.com/" + tabID + ".mp4", Origin: types.OriginNetworkBody}}}, nil
}

func (s *stubService) ClearDetectedVideos(ctx context.Context, tabID string) (controller.ClearResult, error) {
	s.cleared = append(s.cleared, tabID)
	return controller.ClearResult{Success: true, Disabled: !s.enabled}, nil
}

func (s *stubService) GetEnabled(ctx context.Context) (bool, error) { return s.enabled, nil }

func (s *stubService) SetEnabled(ctx context.Context, enabled bool) (controller.ToggleResult, error) {
	s.enabled = enabled
	return controller.ToggleResult{Success: true, Enabled: enabled}, nil
}

func (s *stubService) Dispatch(ctx context.Context, msg controller.Message) (any, error) {
	s.messages = append(s.messages, msg)
	if msg.Action != controller.ActionGetDetectedVideos {
		return nil, &controller.CodedError{Code: controller.CodeValidation, Message: "unknown action: " + msg.Action}
	}
	return s.GetDetectedVideos(ctx, msg.TabID)
}

func (s *stubService) DownloadVideo(ctx context.Context, tabID, rawURL string) (storage.DownloadJob, error) {
	if s.err != nil {
		return storage.DownloadJob{}, s.err
	}
	return storage.DownloadJob{ID: "job-1", TabID: tabID, URL: rawURL, Status: storage.DownloadPending}, nil
}

func (s *stubService) ListDownloads(ctx context.Context) ([]storage.DownloadJob, error) {
	return []storage.DownloadJob{}, nil
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	w := serve(h, http.MethodGet, "/docs", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
}

func TestGetDetectedVideos(t *testing.T) {
	h := NewServer(&stubService{enabled: true}, nil)
	w := serve(h, http.MethodGet, "/api/v1/tabs/T1/videos", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res controller.VideosResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Videos) != 1 || res.Videos[0].URL != "https://site.com/T1.mp4" {
		t.Fatalf("videos = %+v", res.Videos)
	}
}

func TestGetDetectedVideosDisabled(t *testing.T) {
	h := NewServer(&stubService{enabled: false}, nil)
	w := serve(h, http.MethodGet, "/api/v1/tabs/T1/videos", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"videos":[]`) || !strings.Contains(body, `"disabled":true`) {
		t.Fatalf("body = %s", body)
	}
}

func TestClearAndToggle(t *testing.T) {
	svc := &stubService{enabled: true}
	h := NewServer(svc, nil)

	w := serve(h, http.MethodDelete, "/api/v1/tabs/T9/videos", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if len(svc.cleared) != 1 || svc.cleared[0] != "T9" {
		t.Fatalf("cleared = %v", svc.cleared)
	}

	w = serve(h, http.MethodPut, "/api/v1/settings/video-downloader", `{"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.enabled {
		t.Fatalf("expected detection disabled")
	}

	w = serve(h, http.MethodGet, "/api/v1/settings/video-downloader", "")
	if !strings.Contains(w.Body.String(), `"enabled":false`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestMessageDispatch(t *testing.T) {
	svc := &stubService{enabled: true}
	h := NewServer(svc, nil)

	w := serve(h, http.MethodPost, "/api/v1/messages", `{"action":"getDetectedVideos","tabId":"T2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "T2.mp4") {
		t.Fatalf("body = %s", w.Body.String())
	}

	w = serve(h, http.MethodPost, "/api/v1/messages", `{"action":"bogus"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDownloadErrorMapping(t *testing.T) {
	svc := &stubService{err: &controller.CodedError{Code: controller.CodeVideoNotFound, Message: "not detected"}}
	h := NewServer(svc, nil)

	w := serve(h, http.MethodPost, "/api/v1/tabs/T1/videos/download", `{"url":"https://site.com/x.mp4"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	svc.err = nil
	w = serve(h, http.MethodPost, "/api/v1/tabs/T1/videos/download", `{"url":"https://site.com/x.mp4"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body = %s", w.Code, w.Body.String())
	}
}

func TestEventRoutesMountedWithBroker(t *testing.T) {
	h := NewServer(&stubService{}, nil)
	if w := serve(h, http.MethodGet, "/api/v1/events/ws", ""); w.Code != http.StatusNotFound {
		t.Fatalf("events route without broker: status = %d, want 404", w.Code)
	}

	h = NewServer(&stubService{}, events.NewBroker())
	if w := serve(h, http.MethodGet, "/api/v1/events/ws", ""); w.Code == http.StatusNotFound {
		t.Fatalf("events route missing with broker")
	}
}

func TestMapErr(t *testing.T) {
	cases := map[string]int{
		controller.CodeValidation:     http.StatusBadRequest,
		controller.CodeVideoNotFound:  http.StatusNotFound,
		controller.CodeUnavailable:    http.StatusServiceUnavailable,
		controller.CodeDownloadFailed: http.StatusBadGateway,
		"OTHER":                       http.StatusInternalServerError,
	}
	for code, want := range cases {
		err := mapErr(&controller.CodedError{Code: code, Message: "x"})
		se, ok := err.(interface{ GetStatus() int })
		if !ok {
			t.Fatalf("%s: error %T has no status", code, err)
		}
		if se.GetStatus() != want {
			t.Fatalf("%s: status = %d, want %d", code, se.GetStatus(), want)
		}
	}
	if mapErr(nil) != nil {
		t.Fatalf("mapErr(nil) should be nil")
	}
}
