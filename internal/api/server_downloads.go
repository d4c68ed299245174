package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/vid_agent/internal/storage"
)

func registerDownloadHandlers(api huma.API, svc Service) {
	type jobOutput struct {
		Body storage.DownloadJob
	}
	huma.Register(api, huma.Operation{
		OperationID:   "download-video",
		Method:        http.MethodPost,
		Path:          "/api/v1/tabs/{tab_id}/videos/download",
		Summary:       "Download a video detected on a tab",
		Tags:          []string{"Downloads"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *struct {
		TabID string `path:"tab_id"`
		Body  struct {
			URL string `json:"url" required:"true" doc:"Detected video URL"`
		}
	}) (*jobOutput, error) {
		job, err := svc.DownloadVideo(ctx, input.TabID, input.Body.URL)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &jobOutput{}
		out.Body = job
		return out, nil
	})

	type listOutput struct {
		Body struct {
			Downloads []storage.DownloadJob `json:"downloads"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-downloads", Method: http.MethodGet, Path: "/api/v1/downloads", Summary: "List download jobs", Tags: []string{"Downloads"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			jobs, err := svc.ListDownloads(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listOutput{}
			out.Body.Downloads = jobs
			return out, nil
		})
}
