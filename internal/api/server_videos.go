package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/vid_agent/internal/controller"
)

func registerVideoHandlers(api huma.API, svc Service) {
	type listTabsOutput struct {
		Body struct {
			Tabs []controller.TabVideos `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List attached tabs and their detected video counts", Tags: []string{"Videos"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = tabs
			return out, nil
		})

	type videosOutput struct {
		Body controller.VideosResult
	}
	huma.Register(api, huma.Operation{OperationID: "get-detected-videos", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/videos", Summary: "Get videos detected on a tab", Tags: []string{"Videos"}},
		func(ctx context.Context, input *tabIDInput) (*videosOutput, error) {
			res, err := svc.GetDetectedVideos(ctx, input.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &videosOutput{}
			out.Body = res
			return out, nil
		})

	type clearOutput struct {
		Body controller.ClearResult
	}
	huma.Register(api, huma.Operation{OperationID: "clear-detected-videos", Method: http.MethodDelete, Path: "/api/v1/tabs/{tab_id}/videos", Summary: "Clear videos detected on a tab", Tags: []string{"Videos"}},
		func(ctx context.Context, input *tabIDInput) (*clearOutput, error) {
			res, err := svc.ClearDetectedVideos(ctx, input.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &clearOutput{}
			out.Body = res
			return out, nil
		})
}
