package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/vid_agent/internal/controller"
)

func registerSettingsHandlers(api huma.API, svc Service) {
	type enabledOutput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-video-downloader", Method: http.MethodGet, Path: "/api/v1/settings/video-downloader", Summary: "Get whether video detection is enabled", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*enabledOutput, error) {
			enabled, err := svc.GetEnabled(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &enabledOutput{}
			out.Body.Enabled = enabled
			return out, nil
		})

	type toggleOutput struct {
		Body controller.ToggleResult
	}
	huma.Register(api, huma.Operation{OperationID: "set-video-downloader", Method: http.MethodPut, Path: "/api/v1/settings/video-downloader", Summary: "Enable or disable video detection", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Enabled bool `json:"enabled" required:"true" doc:"New detection state"`
			}
		}) (*toggleOutput, error) {
			res, err := svc.SetEnabled(ctx, input.Body.Enabled)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &toggleOutput{}
			out.Body = res
			return out, nil
		})
}
