// Package transfer reads and writes the portable export document.
package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bunchhieng/gdaes/internal/migrate"
	"github.com/bunchhieng/gdaes/internal/model"
)

// FormatVersion is written into every exported document.
const FormatVersion = "2.1"

// Document is the exported file layout.
type Document struct {
	GdaesData  model.Collection `json:"gdaesData"`
	ExportDate string           `json:"exportDate"`
	Version    string           `json:"version"`
}

// Export wraps c in a document stamped with now.
func Export(c model.Collection, now time.Time) Document {
	return Document{
		GdaesData:  c.Clone(),
		ExportDate: model.FormatTimestamp(now),
		Version:    FormatVersion,
	}
}

// Encode writes the document as indented JSON.
func (d Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(d)
}

// FileName returns the suggested file name for an export made at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("gdaes-backup-%s.json", now.UTC().Format("2006-01-02"))
}

// Decode parses an exported document. Both the current gdaesData layout and
// the legacy tabLists layout are accepted.
func Decode(raw []byte) (model.Collection, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return model.Collection{}, fmt.Errorf("%w: not a JSON object", model.ErrFormat)
	}

	if data, ok := doc["gdaesData"]; ok && !isNull(data) {
		return migrate.Normalize(data)
	}
	if data, ok := doc["tabLists"]; ok && !isNull(data) {
		return migrate.NormalizeMapping(data)
	}
	return model.Collection{}, fmt.Errorf("%w: no gdaesData or tabLists", model.ErrFormat)
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
