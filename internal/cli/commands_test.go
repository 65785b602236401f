package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bunchhieng/gdaes/internal/backup"
	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
)

func setupCommands(t *testing.T) (*Commands, *lists.Store, *bytes.Buffer, *[]string) {
	t.Helper()
	log := logger.NewNop()

	db := storage.NewSQLiteStorage(":memory:", log)
	require.NoError(t, db.Init(context.Background()))
	t.Cleanup(func() { db.Close() })

	mirror := storage.NewFileMirror(filepath.Join(t.TempDir(), "mirror.json"), log)
	store := lists.NewStore(storage.NewAdapter(db, mirror, log), backup.NewRotator(db, backup.DefaultRetention, log), log)
	store.Load(context.Background())

	var out bytes.Buffer
	var opened []string
	c := NewCommands(store, &out)
	c.OpenURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}
	c.Now = func() time.Time { return time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC) }
	return c, store, &out, &opened
}

func urls(l model.List) []string {
	out := make([]string, len(l))
	for i, link := range l {
		out[i] = link.URL
	}
	return out
}

func TestListsAndShow(t *testing.T) {
	c, _, out, _ := setupCommands(t)
	ctx := context.Background()

	require.NoError(t, c.Lists())
	assert.Contains(t, out.String(), model.DefaultReadLater)
	assert.Contains(t, out.String(), model.DefaultProjects)

	out.Reset()
	require.NoError(t, c.Show(model.DefaultProjects))
	assert.Contains(t, out.String(), "is empty")

	require.NoError(t, c.Add(ctx, model.DefaultProjects, "https://go.dev", "Go"))
	out.Reset()
	require.NoError(t, c.Show(model.DefaultProjects))
	assert.Contains(t, out.String(), "https://go.dev")
	assert.Contains(t, out.String(), "TITLE")
}

func TestShowSuggestsSimilarList(t *testing.T) {
	c, _, _, _ := setupCommands(t)

	err := c.Show("Projeto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "Did you mean")
	assert.Contains(t, err.Error(), model.DefaultProjects)
}

func TestCreateRenameDelete(t *testing.T) {
	c, store, out, _ := setupCommands(t)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, "  Work  "))
	assert.Contains(t, out.String(), "Created")
	assert.True(t, store.Snapshot().Has("Work"))

	assert.ErrorIs(t, c.Create(ctx, "Work"), model.ErrDuplicateName)

	require.NoError(t, c.Rename(ctx, "Work", "Office"))
	assert.Equal(t, []string{model.DefaultReadLater, model.DefaultProjects, "Office"}, store.Snapshot().Order)

	err := c.Delete(ctx, "Office", "Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nope (not found)")
	assert.False(t, store.Snapshot().Has("Office"))
}

func TestAddRejectsInvalidURL(t *testing.T) {
	c, store, _, _ := setupCommands(t)

	err := c.Add(context.Background(), model.DefaultProjects, "not-a-url", "")
	assert.ErrorIs(t, err, model.ErrInvalidURL)
	assert.Empty(t, store.Snapshot().Lists[model.DefaultProjects])
}

func TestMove(t *testing.T) {
	c, store, out, _ := setupCommands(t)
	ctx := context.Background()
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		require.NoError(t, c.Add(ctx, model.DefaultReadLater, u, ""))
	}

	// Within a list, "at" refers to positions before the move.
	require.NoError(t, c.Move(ctx, model.DefaultReadLater, 1, model.DefaultReadLater, 3))
	assert.Equal(t, []string{"https://b.example", "https://a.example", "https://c.example"},
		urls(store.Snapshot().Lists[model.DefaultReadLater]))

	require.NoError(t, c.Move(ctx, model.DefaultReadLater, 3, model.DefaultProjects, 0))
	assert.Equal(t, []string{"https://c.example"}, urls(store.Snapshot().Lists[model.DefaultProjects]))
	assert.Contains(t, out.String(), "Moved")

	assert.ErrorIs(t, c.Move(ctx, model.DefaultReadLater, 9, model.DefaultProjects, 0), model.ErrIndexOutOfRange)

	err := c.Move(ctx, model.DefaultReadLater, 1, "Missing", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Len(t, store.Snapshot().Lists[model.DefaultReadLater], 2)
}

func TestReorder(t *testing.T) {
	c, store, out, _ := setupCommands(t)
	ctx := context.Background()

	require.NoError(t, c.Reorder(ctx, model.DefaultReadLater, model.DefaultProjects))
	assert.Equal(t, []string{model.DefaultProjects, model.DefaultReadLater}, store.Snapshot().Order)
	assert.Contains(t, out.String(), "position 2")

	out.Reset()
	require.NoError(t, c.Reorder(ctx, model.DefaultProjects, model.DefaultProjects))
	assert.Contains(t, out.String(), "Order unchanged")

	assert.Error(t, c.Reorder(ctx, "Missing", model.DefaultProjects))
}

func TestRemove(t *testing.T) {
	c, store, _, _ := setupCommands(t)
	ctx := context.Background()
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example", "https://d.example"} {
		require.NoError(t, c.Add(ctx, model.DefaultProjects, u, ""))
	}

	require.NoError(t, c.Remove(ctx, model.DefaultProjects, 1, 3, 3))
	assert.Equal(t, []string{"https://b.example", "https://d.example"}, urls(store.Snapshot().Lists[model.DefaultProjects]))

	err := c.Remove(ctx, model.DefaultProjects, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "7 (out of range)")
}

func TestOpen(t *testing.T) {
	c, store, out, opened := setupCommands(t)
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, model.DefaultProjects, "https://a.example", ""))
	_, err := store.AddLink(ctx, model.DefaultProjects, model.Link{URL: "broken"})
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, model.DefaultProjects, "https://b.example", ""))

	require.NoError(t, c.Open(model.DefaultProjects, 0))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, *opened)
	assert.Contains(t, out.String(), "Skipped:")

	*opened = nil
	require.NoError(t, c.Open(model.DefaultProjects, 3))
	assert.Equal(t, []string{"https://b.example"}, *opened)

	assert.Error(t, c.Open(model.DefaultProjects, 2))
	assert.ErrorIs(t, c.Open(model.DefaultProjects, 9), model.ErrIndexOutOfRange)
}

func TestSearch(t *testing.T) {
	c, _, out, _ := setupCommands(t)
	require.NoError(t, c.Add(context.Background(), model.DefaultProjects, "https://go.dev", "Go website"))

	require.NoError(t, c.Search("website"))
	assert.Contains(t, out.String(), "https://go.dev")

	out.Reset()
	require.NoError(t, c.Search("zzz"))
	assert.Contains(t, out.String(), "No links found.")
}

func TestExportImport(t *testing.T) {
	c, _, out, _ := setupCommands(t)
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, model.DefaultProjects, "https://go.dev", "Go"))

	dir := t.TempDir() + string(os.PathSeparator)
	require.NoError(t, c.Export(out, dir))
	path := filepath.Join(dir, "gdaes-backup-2024-03-09.json")
	_, err := os.Stat(path)
	require.NoError(t, err)

	other, otherStore, otherOut, _ := setupCommands(t)
	require.NoError(t, other.Import(ctx, path))
	assert.Contains(t, otherOut.String(), "Imported")
	assert.Equal(t, []string{"https://go.dev"}, urls(otherStore.Snapshot().Lists[model.DefaultProjects]))

	var stdout bytes.Buffer
	require.NoError(t, c.Export(&stdout, ""))
	assert.Contains(t, stdout.String(), `"gdaesData"`)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nope":1}`), 0644))
	assert.ErrorIs(t, other.Import(ctx, bad), model.ErrFormat)
}

type failingCloser struct {
	bytes.Buffer
}

func (f *failingCloser) Close() error {
	return errors.New("no space left on device")
}

func TestExportReportsCloseError(t *testing.T) {
	c, _, out, _ := setupCommands(t)
	var file failingCloser
	c.CreateFile = func(string) (io.WriteCloser, error) { return &file, nil }

	err := c.Export(out, "export.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close file")
	assert.Contains(t, file.String(), `"gdaesData"`)
	assert.NotContains(t, out.String(), "Exported")
}

func TestBackupsAndRestore(t *testing.T) {
	c, store, out, _ := setupCommands(t)
	ctx := context.Background()

	require.NoError(t, c.Backups(ctx))
	assert.Contains(t, out.String(), "No backups found.")

	require.NoError(t, c.Add(ctx, model.DefaultProjects, "https://a.example", ""))
	require.NoError(t, c.Add(ctx, model.DefaultProjects, "https://b.example", ""))

	all, err := store.Backups(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	out.Reset()
	require.NoError(t, c.Backups(ctx))
	assert.Contains(t, out.String(), "KEY")

	require.NoError(t, c.Restore(ctx, all[1].Key))
	assert.Equal(t, []string{"https://a.example"}, urls(store.Snapshot().Lists[model.DefaultProjects]))

	err = c.Restore(ctx, 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStatusAndVersion(t *testing.T) {
	c, _, out, _ := setupCommands(t)

	require.NoError(t, c.Status("/tmp/gdaes.db", "file /tmp/mirror.json"))
	assert.Contains(t, out.String(), "default")
	assert.Contains(t, out.String(), "/tmp/gdaes.db")

	out.Reset()
	c.Version("1.2.3")
	assert.Equal(t, "gdaes version 1.2.3\n", out.String())
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ñññ...", truncateString("ññññññññ", 6))
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"0", "-1", "x"} {
		_, err := ParseNumber(bad)
		assert.Error(t, err, bad)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("abc", "abc"))
	assert.Equal(t, 1, levenshteinDistance("projeto", "projetos"))
	assert.Equal(t, 3, levenshteinDistance("", "abc"))
}
