package model

import (
	"net/url"
	"strings"
)

// Link represents a saved URL.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Validate checks if the link has a valid absolute URL.
func (l Link) Validate() error {
	if l.URL == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// DisplayTitle returns the title, or the URL when the title is empty.
func (l Link) DisplayTitle() string {
	if strings.TrimSpace(l.Title) == "" {
		return l.URL
	}
	return l.Title
}

// Matches reports whether query appears in the title or URL, ignoring case.
func (l Link) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(l.Title), q) ||
		strings.Contains(strings.ToLower(l.URL), q)
}

// List is an ordered sequence of links owned by a single name.
type List []Link

// Clone returns a copy of the list that shares no backing array.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}
