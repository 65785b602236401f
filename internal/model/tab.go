package model

// Tab is an open browser tab as reported by the tab provider.
type Tab struct {
	ID         int    `json:"id"`
	WindowID   int    `json:"windowId"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	FavIconURL string `json:"favIconUrl,omitempty"`
}

// Payload builds the drag payload for moving this tab into a list.
func (t Tab) Payload() (TabPayload, error) {
	return NewTabPayload(t.URL, t.Title, t.ID)
}
