package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
	"github.com/bunchhieng/gdaes/internal/transfer"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// Commands handles all CLI command execution.
type Commands struct {
	store *lists.Store
	out   io.Writer

	// OpenURL opens a URL in the user's browser.
	OpenURL func(url string) error
	// Now is the clock used for export file names and dates.
	Now func() time.Time
	// CreateFile opens export files for writing.
	CreateFile func(path string) (io.WriteCloser, error)
}

// NewCommands creates a new Commands instance writing to out.
func NewCommands(store *lists.Store, out io.Writer) *Commands {
	return &Commands{
		store:      store,
		out:        out,
		OpenURL:    openBrowser,
		Now:        time.Now,
		CreateFile: createFile,
	}
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func (c *Commands) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

// suggestList suggests a similar list name if the given one is not found.
func (c *Commands) suggestList(name string) string {
	bestMatch := ""
	minDistance := len(name) + 1

	for _, candidate := range c.store.Snapshot().Order {
		distance := levenshteinDistance(strings.ToLower(name), strings.ToLower(candidate))
		if distance < minDistance && distance <= 3 {
			minDistance = distance
			bestMatch = candidate
		}
	}

	return bestMatch
}

func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	matrix := make([][]int, len(r1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(r2)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(r2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(r1)][len(r2)]
}

func (c *Commands) handleError(err error, name string, action string) error {
	if errors.Is(err, model.ErrListNotFound) {
		msg := fmt.Sprintf("list %s%s%s not found", colorBold, name, colorReset)
		if suggestion := c.suggestList(name); suggestion != "" {
			msg += fmt.Sprintf("\n\n%sDid you mean:%s %s%s%s?", colorYellow, colorReset, colorBold, suggestion, colorReset)
		}
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// reportCommit warns when a change did not reach the primary store.
func (c *Commands) reportCommit(commit storage.Commit) {
	switch commit.Outcome {
	case storage.Degraded:
		c.printf("%sWarning:%s primary store unavailable, change saved to the mirror only.\n", colorYellow, colorReset)
	case storage.Failed:
		c.printf("%sWarning:%s change could not be saved and will be lost on exit.\n", colorRed, colorReset)
	}
}

// Lists prints every list in display order.
func (c *Commands) Lists() error {
	snap := c.store.Snapshot()
	if len(snap.Order) == 0 {
		fmt.Fprintln(c.out, "No lists found.")
		return nil
	}

	rows := make([][]string, 0, len(snap.Order))
	for i, name := range snap.Order {
		rows = append(rows, []string{strconv.Itoa(i + 1), name, strconv.Itoa(len(snap.Lists[name]))})
	}
	c.printTable([]string{"#", "LIST", "LINKS"}, []int{0, 40, 0}, rows)
	return nil
}

// Show prints the links of one list.
func (c *Commands) Show(name string) error {
	links, err := c.store.List(name)
	if err != nil {
		return c.handleError(err, name, "show list")
	}
	if len(links) == 0 {
		c.printf("List %s%s%s is empty.\n", colorBold, name, colorReset)
		return nil
	}

	rows := make([][]string, 0, len(links))
	for i, l := range links {
		rows = append(rows, []string{strconv.Itoa(i + 1), l.Title, l.URL})
	}
	c.printTable([]string{"#", "TITLE", "URL"}, []int{0, maxTitleLen, maxURLLen}, rows)
	return nil
}

// Create adds a new empty list.
func (c *Commands) Create(ctx context.Context, name string) error {
	commit, err := c.store.CreateList(ctx, name)
	if err != nil {
		return fmt.Errorf("create list: %w", err)
	}
	c.printf("%sCreated%s list %s%s%s.\n", colorGreen, colorReset, colorBold, strings.TrimSpace(name), colorReset)
	c.reportCommit(commit)
	return nil
}

// Rename renames a list.
func (c *Commands) Rename(ctx context.Context, oldName, newName string) error {
	commit, err := c.store.RenameList(ctx, oldName, newName)
	if err != nil {
		return c.handleError(err, oldName, "rename list")
	}
	c.printf("%sRenamed%s %s%s%s to %s%s%s.\n", colorYellow, colorReset, colorBold, oldName, colorReset, colorBold, strings.TrimSpace(newName), colorReset)
	c.reportCommit(commit)
	return nil
}

// Delete removes one or more lists.
func (c *Commands) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("at least one list name required")
	}

	var deleted, failed []string
	for _, name := range names {
		if !c.store.Snapshot().Has(name) {
			msg := fmt.Sprintf("%s (not found)", name)
			if suggestion := c.suggestList(name); suggestion != "" {
				msg += fmt.Sprintf(" - %sDid you mean:%s %s%s%s?", colorYellow, colorReset, colorBold, suggestion, colorReset)
			}
			failed = append(failed, msg)
			continue
		}
		c.reportCommit(c.store.DeleteList(ctx, name))
		deleted = append(deleted, name)
	}

	if len(deleted) == 1 {
		c.printf("%sDeleted%s list %s%s%s.\n", colorRed, colorReset, colorBold, deleted[0], colorReset)
	} else if len(deleted) > 1 {
		c.printf("%sDeleted%s %d lists: %s%s%s\n", colorRed, colorReset, len(deleted), colorBold, strings.Join(deleted, ", "), colorReset)
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete: %s", strings.Join(failed, ", "))
	}
	return nil
}

// Add appends a link to a list.
func (c *Commands) Add(ctx context.Context, name, url, title string) error {
	link := model.Link{URL: url, Title: title}
	if err := link.Validate(); err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	commit, err := c.store.AddLink(ctx, name, link)
	if err != nil {
		return c.handleError(err, name, "add link")
	}
	c.printf("%sAdded%s %s%s%s to %s%s%s.\n", colorGreen, colorReset, colorCyan, url, colorReset, colorBold, name, colorReset)
	c.reportCommit(commit)
	return nil
}

// Move moves link number n (1-based) of list from to list to, before
// position at (1-based) or at the end when at is 0.
func (c *Commands) Move(ctx context.Context, from string, n int, to string, at int) error {
	links, err := c.store.List(from)
	if err != nil {
		return c.handleError(err, from, "move link")
	}
	if n < 1 || n > len(links) {
		return fmt.Errorf("link %d: %w (list %s has %d links)", n, model.ErrIndexOutOfRange, from, len(links))
	}

	link := links[n-1]
	payload, err := model.NewURLPayload(link.URL, link.Title, from, n-1)
	if err != nil {
		return err
	}

	index := lists.End
	if at > 0 {
		index = at - 1
	}

	result, err := c.store.MoveLink(ctx, payload, to, index)
	if err != nil {
		return c.handleError(err, to, "move link")
	}
	if !result.Applied {
		c.printf("Nothing moved.\n")
		return nil
	}
	c.printf("%sMoved%s %s%s%s from %s%s%s to %s%s%s.\n",
		colorGreen, colorReset,
		colorCyan, link.DisplayTitle(), colorReset,
		colorBold, from, colorReset,
		colorBold, to, colorReset)
	c.reportCommit(result.Commit)
	return nil
}

// Reorder moves list source to the position of list target.
func (c *Commands) Reorder(ctx context.Context, source, target string) error {
	snap := c.store.Snapshot()
	for _, name := range []string{source, target} {
		if !snap.Has(name) {
			return c.handleError(fmt.Errorf("%w: %q", model.ErrListNotFound, name), name, "reorder")
		}
	}

	commit := c.store.ReorderLists(ctx, source, target)
	if commit.Outcome == storage.Unchanged {
		c.printf("Order unchanged.\n")
		return nil
	}
	c.printf("%sMoved%s list %s%s%s to position %d.\n", colorGreen, colorReset, colorBold, source, colorReset, c.store.Snapshot().Index(source)+1)
	c.reportCommit(commit)
	return nil
}

// Remove deletes links by their 1-based numbers within a list.
func (c *Commands) Remove(ctx context.Context, name string, numbers ...int) error {
	if len(numbers) == 0 {
		return fmt.Errorf("at least one link number required")
	}
	links, err := c.store.List(name)
	if err != nil {
		return c.handleError(err, name, "remove link")
	}

	// Highest first so earlier numbers stay valid.
	sorted := append([]int(nil), numbers...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var removed int
	var failed []string
	last := 0
	for _, n := range sorted {
		if n == last {
			continue
		}
		last = n
		if n < 1 || n > len(links) {
			failed = append(failed, fmt.Sprintf("%d (out of range)", n))
			continue
		}
		c.reportCommit(c.store.DeleteLink(ctx, name, n-1))
		removed++
	}

	if removed > 0 {
		c.printf("%sDeleted%s %d link(s) from %s%s%s.\n", colorRed, colorReset, removed, colorBold, name, colorReset)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to delete: %s", strings.Join(failed, ", "))
	}
	return nil
}

// Open opens link number n of a list, or every valid link when n is 0.
func (c *Commands) Open(name string, n int) error {
	if n > 0 {
		links, err := c.store.List(name)
		if err != nil {
			return c.handleError(err, name, "open")
		}
		if n > len(links) {
			return fmt.Errorf("link %d: %w", n, model.ErrIndexOutOfRange)
		}
		if err := links[n-1].Validate(); err != nil {
			return fmt.Errorf("cannot open %s: %w", links[n-1].URL, err)
		}
		if err := c.OpenURL(links[n-1].URL); err != nil {
			return fmt.Errorf("open browser: %w", err)
		}
		c.printf("%sOpened:%s %s%s%s\n", colorGreen, colorReset, colorCyan, links[n-1].URL, colorReset)
		return nil
	}

	valid, skipped, err := c.store.OpenAllLinks(name)
	if err != nil {
		return c.handleError(err, name, "open")
	}
	for _, l := range skipped {
		c.printf("%sSkipped:%s %s (invalid URL)\n", colorYellow, colorReset, l.URL)
	}
	for _, l := range valid {
		if err := c.OpenURL(l.URL); err != nil {
			return fmt.Errorf("open browser: %w", err)
		}
		c.printf("%sOpened:%s %s%s%s\n", colorGreen, colorReset, colorCyan, l.URL, colorReset)
	}
	if len(valid) == 0 && len(skipped) == 0 {
		c.printf("List %s%s%s is empty.\n", colorBold, name, colorReset)
	}
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	return cmd.Run()
}

// Search lists links matching query across all lists.
func (c *Commands) Search(query string) error {
	hits := c.store.Search(query)
	if len(hits) == 0 {
		fmt.Fprintln(c.out, "No links found.")
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.List, strconv.Itoa(h.Index + 1), h.Link.Title, h.Link.URL})
	}
	c.printTable([]string{"LIST", "#", "TITLE", "URL"}, []int{maxListLen, 0, maxTitleLen, maxURLLen}, rows)
	return nil
}

// Export writes the export document to w, or to a file when path is set.
// A path ending in a separator receives the default file name.
func (c *Commands) Export(w io.Writer, path string) error {
	now := c.Now()
	doc := c.store.Export(now)

	if path == "" {
		if err := doc.Encode(w); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	}

	if strings.HasSuffix(path, string(os.PathSeparator)) {
		path += transfer.FileName(now)
	}
	file, err := c.CreateFile(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := doc.Encode(file); err != nil {
		file.Close()
		return fmt.Errorf("encode JSON: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	c.printf("%sExported%s %d list(s) to %s%s%s\n", colorGreen, colorReset, len(doc.GdaesData.Order), colorCyan, path, colorReset)
	return nil
}

// Import replaces every list with the contents of an exported file.
func (c *Commands) Import(ctx context.Context, filename string) error {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	commit, err := c.store.Import(ctx, raw)
	if err != nil {
		return fmt.Errorf("import lists: %w", err)
	}

	snap := c.store.Snapshot()
	c.printf("%sImported%s %s%d%s list(s), %s%d%s link(s).\n",
		colorGreen, colorReset,
		colorBold, len(snap.Order), colorReset,
		colorBold, snap.LinkCount(), colorReset)
	c.reportCommit(commit)
	return nil
}

// Backups prints stored snapshots, newest first.
func (c *Commands) Backups(ctx context.Context) error {
	backups, err := c.store.Backups(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(backups) == 0 {
		fmt.Fprintln(c.out, "No backups found.")
		return nil
	}

	rows := make([][]string, 0, len(backups))
	for _, b := range backups {
		rows = append(rows, []string{
			strconv.FormatInt(b.Key, 10),
			formatTime(b.Timestamp),
			strconv.Itoa(len(b.Data.Order)),
			strconv.Itoa(b.Data.LinkCount()),
		})
	}
	c.printTable([]string{"KEY", "CREATED", "LISTS", "LINKS"}, []int{0, 0, 0, 0}, rows)
	return nil
}

// Restore replaces the collection with a backup.
func (c *Commands) Restore(ctx context.Context, key int64) error {
	commit, err := c.store.RestoreBackup(ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("backup %s%d%s not found", colorBold, key, colorReset)
		}
		return fmt.Errorf("restore backup: %w", err)
	}
	c.printf("%sRestored%s backup %s%d%s.\n", colorGreen, colorReset, colorBold, key, colorReset)
	c.reportCommit(commit)
	return nil
}

// Status prints where the collection was loaded from and its size.
func (c *Commands) Status(dbPath, mirror string) error {
	snap := c.store.Snapshot()
	c.printf("%sSource:%s  %s\n", colorBold, colorReset, c.store.Source())
	c.printf("%sDB:%s      %s\n", colorBold, colorReset, dbPath)
	c.printf("%sMirror:%s  %s\n", colorBold, colorReset, mirror)
	c.printf("%sLists:%s   %d\n", colorBold, colorReset, len(snap.Order))
	c.printf("%sLinks:%s   %d\n", colorBold, colorReset, snap.LinkCount())
	return nil
}

// Version prints the version information.
func (c *Commands) Version(version string) {
	c.printf("gdaes version %s\n", version)
}

const (
	maxURLLen   = 60
	maxTitleLen = 40
	maxListLen  = 24
	ellipsisLen = 3
)

// printTable draws rows in a box. maxWidths caps each column; 0 means no cap.
func (c *Commands) printTable(headers []string, maxWidths []int, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			n := len([]rune(cell))
			if maxWidths[i] > 0 {
				n = truncateLen(n, maxWidths[i])
			}
			if n > widths[i] {
				widths[i] = n
			}
		}
	}

	totalWidth := len(widths) - 1
	for _, w := range widths {
		totalWidth += w + 2
	}

	var header strings.Builder
	header.WriteString(colorDim + "│" + colorReset)
	for i, h := range headers {
		fmt.Fprintf(&header, " %s%s%s %s│%s", colorBold, pad(h, widths[i]), colorReset, colorDim, colorReset)
	}

	segments := make([]string, len(widths))
	for i, w := range widths {
		segments[i] = strings.Repeat("─", w+2)
	}

	fmt.Fprintf(c.out, "%s┌%s┐%s\n", colorDim, strings.Repeat("─", totalWidth), colorReset)
	fmt.Fprintln(c.out, header.String())
	fmt.Fprintf(c.out, "%s├%s┤%s\n", colorDim, strings.Join(segments, "┼"), colorReset)

	for _, row := range rows {
		var line strings.Builder
		line.WriteString(colorDim + "│" + colorReset)
		for i, cell := range row {
			color := ""
			switch headers[i] {
			case "#", "KEY":
				color = colorBold + colorCyan
			case "URL":
				color = colorCyan
			case "CREATED":
				color = colorDim
			}
			fmt.Fprintf(&line, " %s%s%s %s│%s", color, pad(truncateString(cell, widths[i]), widths[i]), colorReset, colorDim, colorReset)
		}
		fmt.Fprintln(c.out, line.String())
	}

	fmt.Fprintf(c.out, "%s└%s┘%s\n", colorDim, strings.Repeat("─", totalWidth), colorReset)
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func truncateLen(n, max int) int {
	if n > max {
		return max
	}
	return n
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-ellipsisLen]) + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// ParseNumber parses a 1-based link or list number.
func ParseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number: %s", s)
	}
	return n, nil
}
