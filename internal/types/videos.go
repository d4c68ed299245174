package types

import "time"

// Origin identifies which observation path produced a candidate record.
type Origin string

const (
	OriginNetworkBody    Origin = "network_body"
	OriginResponseHeader Origin = "response_header"
)

// CandidateRecord is one detected, possibly-video resource.
type CandidateRecord struct {
	URL         string    `json:"url"`
	Timestamp   time.Time `json:"timestamp"`
	Origin      Origin    `json:"origin"`
	ContentType string    `json:"content_type,omitempty"`
}

// JournalEntry is the on-disk form of an accepted record.
type JournalEntry struct {
	TabID     string `json:"tab_id"`
	BrowserID string `json:"browser_id"`
	PageURL   string `json:"page_url,omitempty"`
	CandidateRecord
}
