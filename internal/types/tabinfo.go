package types

// TabInfo holds metadata about an attached browser tab.
type TabInfo struct {
	TargetID string `json:"target_id"`
	URL      string `json:"url"`
	Host     string `json:"host"`     // archive segment of the tab's top-level document, e.g. "app.example.com"
	ShortID  string `json:"short_id"` // first 8 chars of the target ID
}
