package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadKind tags the variant of a DragPayload.
type PayloadKind string

const (
	KindTab  PayloadKind = "tab"
	KindURL  PayloadKind = "url"
	KindList PayloadKind = "list"
)

// DragPayload describes an in-flight move from drag start to drop.
// The set of implementations is closed: TabPayload, URLPayload and ListPayload.
type DragPayload interface {
	Kind() PayloadKind
	isDragPayload()
}

// TabPayload is a link dragged from a live browser tab.
type TabPayload struct {
	URL   string
	Title string
	TabID int
}

// URLPayload is a link dragged out of an existing list entry.
type URLPayload struct {
	URL         string
	Title       string
	SourceList  string
	SourceIndex int
}

// ListPayload is a whole list being reordered.
type ListPayload struct {
	SourceList string
}

func (TabPayload) Kind() PayloadKind  { return KindTab }
func (URLPayload) Kind() PayloadKind  { return KindURL }
func (ListPayload) Kind() PayloadKind { return KindList }

func (TabPayload) isDragPayload()  {}
func (URLPayload) isDragPayload()  {}
func (ListPayload) isDragPayload() {}

// Link returns the link carried by the payload.
func (p TabPayload) Link() Link { return Link{URL: p.URL, Title: p.Title} }

// Link returns the link carried by the payload.
func (p URLPayload) Link() Link { return Link{URL: p.URL, Title: p.Title} }

// NewTabPayload builds a payload for a tab drag.
func NewTabPayload(url, title string, tabID int) (TabPayload, error) {
	if url == "" {
		return TabPayload{}, fmt.Errorf("%w: tab payload without url", ErrInvalidPayload)
	}
	if tabID <= 0 {
		return TabPayload{}, fmt.Errorf("%w: tab id must be positive, got %d", ErrInvalidPayload, tabID)
	}
	return TabPayload{URL: url, Title: title, TabID: tabID}, nil
}

// NewURLPayload builds a payload for a link dragged out of a list.
func NewURLPayload(url, title, sourceList string, sourceIndex int) (URLPayload, error) {
	if url == "" {
		return URLPayload{}, fmt.Errorf("%w: url payload without url", ErrInvalidPayload)
	}
	if strings.TrimSpace(sourceList) == "" {
		return URLPayload{}, fmt.Errorf("%w: url payload without source list", ErrInvalidPayload)
	}
	if sourceIndex < 0 {
		return URLPayload{}, fmt.Errorf("%w: negative source index %d", ErrInvalidPayload, sourceIndex)
	}
	return URLPayload{URL: url, Title: title, SourceList: sourceList, SourceIndex: sourceIndex}, nil
}

// NewListPayload builds a payload for a list reorder.
func NewListPayload(sourceList string) (ListPayload, error) {
	if strings.TrimSpace(sourceList) == "" {
		return ListPayload{}, fmt.Errorf("%w: list payload without source list", ErrInvalidPayload)
	}
	return ListPayload{SourceList: sourceList}, nil
}

// payloadJSON is the wire shape the extension stores in its drag data transfer.
type payloadJSON struct {
	Type        PayloadKind `json:"type"`
	URL         string      `json:"url,omitempty"`
	Title       string      `json:"title,omitempty"`
	TabID       int         `json:"tabId,omitempty"`
	SourceList  string      `json:"sourceList,omitempty"`
	SourceIndex *int        `json:"sourceIndex,omitempty"`
}

// DecodePayload parses and validates a JSON drag payload.
func DecodePayload(data []byte) (DragPayload, error) {
	var raw payloadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch raw.Type {
	case KindTab:
		return NewTabPayload(raw.URL, raw.Title, raw.TabID)
	case KindURL:
		if raw.SourceIndex == nil {
			return nil, fmt.Errorf("%w: url payload without source index", ErrInvalidPayload)
		}
		return NewURLPayload(raw.URL, raw.Title, raw.SourceList, *raw.SourceIndex)
	case KindList:
		return NewListPayload(raw.SourceList)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, raw.Type)
	}
}

// EncodePayload renders a payload in the wire shape accepted by DecodePayload.
func EncodePayload(p DragPayload) ([]byte, error) {
	var raw payloadJSON
	switch v := p.(type) {
	case TabPayload:
		raw = payloadJSON{Type: KindTab, URL: v.URL, Title: v.Title, TabID: v.TabID}
	case URLPayload:
		idx := v.SourceIndex
		raw = payloadJSON{Type: KindURL, URL: v.URL, Title: v.Title, SourceList: v.SourceList, SourceIndex: &idx}
	case ListPayload:
		raw = payloadJSON{Type: KindList, SourceList: v.SourceList}
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrInvalidPayload, p)
	}
	return json.Marshal(raw)
}
