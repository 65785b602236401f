package model

import (
	"errors"
	"testing"
	"time"
)

func TestLinkValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com/path?q=1", false},
		{"chrome://extensions", false},
		{"", true},
		{"not a url", true},
		{"example.com", true},
		{"/relative/path", true},
		{"http://%zz", true},
	}

	for _, tt := range tests {
		err := Link{URL: tt.url}.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Validate(%q) should wrap ErrInvalidURL, got %v", tt.url, err)
		}
	}
}

func TestLinkMatches(t *testing.T) {
	l := Link{URL: "https://go.dev/doc", Title: "Go Documentation"}
	if !l.Matches("documentation") {
		t.Error("expected title match")
	}
	if !l.Matches("GO.DEV") {
		t.Error("expected case-insensitive URL match")
	}
	if l.Matches("rust") {
		t.Error("unexpected match")
	}
	if l.Matches("  ") {
		t.Error("blank query should not match")
	}
}

func TestDefaultCollection(t *testing.T) {
	c := DefaultCollection()
	if err := c.Check(); err != nil {
		t.Fatalf("default collection broken: %v", err)
	}
	if len(c.Order) != 2 || c.Order[0] != DefaultReadLater || c.Order[1] != DefaultProjects {
		t.Errorf("unexpected default order %v", c.Order)
	}
}

func TestCollectionCheck(t *testing.T) {
	tests := []struct {
		name    string
		c       Collection
		wantErr bool
	}{
		{"valid", Collection{Lists: map[string]List{"A": {}, "B": {}}, Order: []string{"B", "A"}}, false},
		{"missing name", Collection{Lists: map[string]List{"A": {}, "B": {}}, Order: []string{"A"}}, true},
		{"unknown name", Collection{Lists: map[string]List{"A": {}}, Order: []string{"Z"}}, true},
		{"duplicate", Collection{Lists: map[string]List{"A": {}, "B": {}}, Order: []string{"A", "A"}}, true},
		{"empty", Collection{Lists: map[string]List{}, Order: []string{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.c.Check(); (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollectionCloneIsDeep(t *testing.T) {
	c := Collection{
		Lists: map[string]List{"A": {{URL: "https://a.example", Title: "a"}}},
		Order: []string{"A"},
	}
	clone := c.Clone()
	clone.Lists["A"][0].Title = "changed"
	clone.Order[0] = "Z"

	if c.Lists["A"][0].Title != "a" {
		t.Error("clone shares link storage with original")
	}
	if c.Order[0] != "A" {
		t.Error("clone shares order storage with original")
	}
}

func TestPayloadConstructors(t *testing.T) {
	if _, err := NewTabPayload("https://a.example", "a", 0); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for zero tab id, got %v", err)
	}
	if _, err := NewURLPayload("https://a.example", "a", "", 0); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for missing source list, got %v", err)
	}
	if _, err := NewURLPayload("https://a.example", "a", "A", -1); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for negative index, got %v", err)
	}
	if _, err := NewListPayload("  "); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for blank list, got %v", err)
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    DragPayload
		wantErr bool
	}{
		{
			name: "tab",
			data: `{"type":"tab","url":"https://a.example","title":"A","tabId":42}`,
			want: TabPayload{URL: "https://a.example", Title: "A", TabID: 42},
		},
		{
			name: "url at index zero",
			data: `{"type":"url","url":"https://a.example","title":"A","sourceList":"Projetos","sourceIndex":0}`,
			want: URLPayload{URL: "https://a.example", Title: "A", SourceList: "Projetos", SourceIndex: 0},
		},
		{
			name: "list",
			data: `{"type":"list","sourceList":"Projetos"}`,
			want: ListPayload{SourceList: "Projetos"},
		},
		{name: "url without index", data: `{"type":"url","url":"https://a.example","sourceList":"P"}`, wantErr: true},
		{name: "tab without id", data: `{"type":"tab","url":"https://a.example"}`, wantErr: true},
		{name: "unknown type", data: `{"type":"window"}`, wantErr: true},
		{name: "not json", data: `nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("expected ErrInvalidPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodePayload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncodePayloadRoundTrip(t *testing.T) {
	payloads := []DragPayload{
		TabPayload{URL: "https://a.example", Title: "A", TabID: 7},
		URLPayload{URL: "https://b.example", Title: "B", SourceList: "Leitura Posterior", SourceIndex: 0},
		ListPayload{SourceList: "Projetos"},
	}
	for _, p := range payloads {
		data, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("EncodePayload(%#v) failed: %v", p, err)
		}
		got, err := DecodePayload(data)
		if err != nil {
			t.Fatalf("DecodePayload(%s) failed: %v", data, err)
		}
		if got != p {
			t.Errorf("round trip = %#v, want %#v", got, p)
		}
	}
}

func TestTabPayload(t *testing.T) {
	tab := Tab{ID: 3, WindowID: 1, Title: "Docs", URL: "https://go.dev"}
	p, err := tab.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if p.TabID != 3 || p.Link() != (Link{URL: "https://go.dev", Title: "Docs"}) {
		t.Errorf("unexpected payload %#v", p)
	}
}

func TestTimestamps(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	s := FormatTimestamp(ts)
	if s != "2024-03-01T12:30:45.123Z" {
		t.Errorf("FormatTimestamp = %s", s)
	}
	if got := ParseTimestamp(s); !got.Equal(ts) {
		t.Errorf("ParseTimestamp = %v, want %v", got, ts)
	}
	if got := ParseTimestamp("garbage"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

func TestGenerateRevision(t *testing.T) {
	a, b := GenerateRevision(), GenerateRevision()
	if len(a) != 26 {
		t.Errorf("expected 26 chars, got %d (%s)", len(a), a)
	}
	if a == b {
		t.Error("expected unique revisions")
	}
}
