package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/vid_agent/internal/controller"
)

func registerMessageHandlers(api huma.API, svc Service) {
	type messageOutput struct {
		Body any
	}
	huma.Register(api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/messages",
		Summary:     "Dispatch an action message",
		Description: "Accepts the {action, tabId, enabled} envelope and returns the matching operation's result.",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *struct {
		Body controller.Message
	}) (*messageOutput, error) {
		res, err := svc.Dispatch(ctx, input.Body)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &messageOutput{}
		out.Body = res
		return out, nil
	})
}
