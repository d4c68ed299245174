package controller

import (
	"context"
	"strings"
)

const (
	ActionGetDetectedVideos         = "getDetectedVideos"
	ActionClearDetectedVideos       = "clearDetectedVideos"
	ActionSetVideoDownloaderEnabled = "setVideoDownloaderEnabled"
)

// Message is the action envelope used by extension-style callers.
type Message struct {
	Action  string `json:"action" doc:"getDetectedVideos, clearDetectedVideos or setVideoDownloaderEnabled"`
	TabID   string `json:"tabId,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// Dispatch routes an action envelope to the matching operation.
func (s *Service) Dispatch(ctx context.Context, msg Message) (any, error) {
	switch strings.TrimSpace(msg.Action) {
	case ActionGetDetectedVideos:
		return s.GetDetectedVideos(ctx, msg.TabID)
	case ActionClearDetectedVideos:
		return s.ClearDetectedVideos(ctx, msg.TabID)
	case ActionSetVideoDownloaderEnabled:
		if msg.Enabled == nil {
			return nil, newError(CodeValidation, "enabled is required", nil)
		}
		return s.SetEnabled(ctx, *msg.Enabled)
	case "":
		return nil, newError(CodeValidation, "action is required", nil)
	default:
		return nil, newError(CodeValidation, "unknown action: "+msg.Action, nil)
	}
}
