package transfer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bunchhieng/gdaes/internal/model"
)

func TestExportImportRoundTrip(t *testing.T) {
	c := model.Collection{
		Lists: map[string]model.List{
			"Projetos":          {{URL: "https://go.dev", Title: "Go <3"}},
			"Leitura Posterior": {},
			"Receitas":          {{URL: "https://a.example/x?y=1&z=2", Title: ""}},
		},
		Order: []string{"Receitas", "Leitura Posterior", "Projetos"},
	}
	now := time.Date(2024, 2, 29, 23, 59, 58, 0, time.UTC)

	doc := Export(c, now)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.Equal(t, "2024-02-29T23:59:58.000Z", doc.ExportDate)

	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"gdaesData\""))
	assert.Contains(t, buf.String(), "Go <3")

	got, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestExportIsCopy(t *testing.T) {
	c := model.DefaultCollection()
	doc := Export(c, time.Now())
	c.Order[0] = "changed"
	assert.Equal(t, model.DefaultReadLater, doc.GdaesData.Order[0])
}

func TestDecodeLegacy(t *testing.T) {
	raw := `{"tabLists": {"Trabalho": [{"url": "https://a.example", "title": "a"}], "Casa": []}}`
	got, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"Trabalho", "Casa"}, got.Order)
	require.NoError(t, got.Check())
}

func TestDecodeWithoutOrder(t *testing.T) {
	raw := `{"gdaesData": {"lists": {"B": [], "A": []}}, "version": "2.0"}`
	got, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, got.Order)
}

func TestDecodeErrors(t *testing.T) {
	inputs := []string{
		`not json`,
		`[]`,
		`{}`,
		`{"gdaesData": null}`,
		`{"somethingElse": {}}`,
		`{"gdaesData": [1, 2]}`,
		`{"tabLists": {"A": "x"}}`,
	}
	for _, in := range inputs {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, model.ErrFormat, "input %s", in)
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "gdaes-backup-2024-07-04.json", FileName(now))
}

func TestDocumentJSONFields(t *testing.T) {
	data, err := json.Marshal(Export(model.DefaultCollection(), time.Unix(0, 0)))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "gdaesData")
	assert.Contains(t, fields, "exportDate")
	assert.JSONEq(t, `"2.1"`, string(fields["version"]))
}
