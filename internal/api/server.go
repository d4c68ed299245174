package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/vid_agent/internal/controller"
	"github.com/dgnsrekt/vid_agent/internal/events"
	"github.com/dgnsrekt/vid_agent/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	ListTabs(ctx context.Context) ([]controller.TabVideos, error)
	GetDetectedVideos(ctx context.Context, tabID string) (controller.VideosResult, error)
	ClearDetectedVideos(ctx context.Context, tabID string) (controller.ClearResult, error)
	GetEnabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) (controller.ToggleResult, error)
	Dispatch(ctx context.Context, msg controller.Message) (any, error)
	DownloadVideo(ctx context.Context, tabID, rawURL string) (storage.DownloadJob, error)
	ListDownloads(ctx context.Context) ([]storage.DownloadJob, error)
}

type tabIDInput struct {
	TabID string `path:"tab_id" doc:"Browser tab (CDP target) ID"`
}

// NewServer builds the HTTP API. broker may be nil, in which case the
// event stream routes are not mounted.
func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Video Sniffer API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if broker != nil {
		router.Get("/api/v1/events", events.SSEHandler(broker))
		router.Get("/api/v1/events/ws", events.WSHandler(broker))
	}

	registerHealthHandlers(api, svc)
	registerVideoHandlers(api, svc)
	registerSettingsHandlers(api, svc)
	registerMessageHandlers(api, svc)
	registerDownloadHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeVideoNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		case controller.CodeDownloadFailed:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
