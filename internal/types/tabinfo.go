package types

// TabInfo holds metadata about an attached browser tab.
type TabInfo struct {
	TargetID  string
	URL       string
	BrowserID string // Short ID from target ID, e.g., "B0D5A8E8"
}

// TabInfoProvider is an interface for looking up tab information by ID.
// This breaks the import cycle between capture and cdp packages.
type TabInfoProvider interface {
	GetByStringID(tabID string) (*TabInfo, bool)
}
