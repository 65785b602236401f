// Package lists owns the in-memory collection and every edit applied to it.
//
// A Store is single-owner: it holds no lock, so callers must run one
// operation at a time. Each mutation updates memory first, then persists
// through the storage adapter, then takes a backup where the operation
// calls for one. The three steps are not transactional.
package lists

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/migrate"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
	"github.com/bunchhieng/gdaes/internal/transfer"
)

// End appends a moved link to the end of the target list.
const End = -1

// Persister saves and loads the whole collection.
type Persister interface {
	Save(ctx context.Context, c model.Collection) storage.Commit
	Load(ctx context.Context) (model.Collection, storage.Source)
}

// Backups records snapshots after destructive edits.
type Backups interface {
	Snapshot(ctx context.Context, c model.Collection)
	List(ctx context.Context) ([]model.Backup, error)
	Get(ctx context.Context, key int64) (*model.Backup, error)
}

// MoveResult reports what a drop did.
type MoveResult struct {
	// Applied is false when the drop was a no-op, for example a stale source index.
	Applied bool
	// ReleaseTabID is the browser tab the caller should close, or 0.
	ReleaseTabID int
	Commit       storage.Commit
}

// SearchHit is a link matching a search query.
type SearchHit struct {
	List  string
	Index int
	Link  model.Link
}

// Store holds the in-memory collection and persists it after each mutation.
type Store struct {
	persist Persister
	backups Backups
	log     logger.Logger

	data   model.Collection
	source storage.Source
}

// NewStore returns a store holding the default collection until Load is called.
func NewStore(persist Persister, backups Backups, log logger.Logger) *Store {
	return &Store{
		persist: persist,
		backups: backups,
		log:     log,
		data:    model.DefaultCollection(),
		source:  storage.SourceDefault,
	}
}

// Load replaces the in-memory collection with the stored one.
func (s *Store) Load(ctx context.Context) storage.Source {
	c, src := s.persist.Load(ctx)
	s.data = migrate.Repair(c)
	s.source = src
	s.log.Info("collection loaded",
		logger.String("source", src.String()),
		logger.Int("lists", len(s.data.Order)),
		logger.Int("links", s.data.LinkCount()))
	return src
}

// Source reports where the last Load found the collection.
func (s *Store) Source() storage.Source {
	return s.source
}

// Snapshot returns a deep copy of the current collection.
func (s *Store) Snapshot() model.Collection {
	return s.data.Clone()
}

// List returns a copy of the named list.
func (s *Store) List(name string) (model.List, error) {
	links, ok := s.data.Lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrListNotFound, name)
	}
	return links.Clone(), nil
}

func (s *Store) commit(ctx context.Context, backup bool) storage.Commit {
	c := s.persist.Save(ctx, s.data)
	if backup && c.Outcome != storage.Failed {
		s.backups.Snapshot(ctx, s.data)
	}
	return c
}

func unchanged() storage.Commit {
	return storage.Commit{Outcome: storage.Unchanged}
}

// CreateList appends an empty list named name to the end of the order.
func (s *Store) CreateList(ctx context.Context, name string) (storage.Commit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return unchanged(), model.ErrInvalidName
	}
	if s.data.Has(name) {
		return unchanged(), fmt.Errorf("%w: %q", model.ErrDuplicateName, name)
	}

	s.data.Lists[name] = model.List{}
	s.data.Order = append(s.data.Order, name)
	s.log.Info("list created", logger.String("list", name))

	return s.commit(ctx, false), nil
}

// RenameList renames a list in place, keeping its links and position.
func (s *Store) RenameList(ctx context.Context, oldName, newName string) (storage.Commit, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" || newName == oldName {
		return unchanged(), model.ErrInvalidName
	}
	links, ok := s.data.Lists[oldName]
	if !ok {
		return unchanged(), fmt.Errorf("%w: %q", model.ErrListNotFound, oldName)
	}
	if s.data.Has(newName) {
		return unchanged(), fmt.Errorf("%w: %q", model.ErrDuplicateName, newName)
	}

	delete(s.data.Lists, oldName)
	s.data.Lists[newName] = links
	if i := s.data.Index(oldName); i >= 0 {
		s.data.Order[i] = newName
	}
	s.log.Info("list renamed", logger.String("from", oldName), logger.String("to", newName))

	return s.commit(ctx, true), nil
}

// DeleteList removes a list and its links. Deleting a missing list is a no-op.
func (s *Store) DeleteList(ctx context.Context, name string) storage.Commit {
	if !s.data.Has(name) {
		return unchanged()
	}

	delete(s.data.Lists, name)
	s.data.Order = slices.DeleteFunc(s.data.Order, func(n string) bool { return n == name })
	s.log.Info("list deleted", logger.String("list", name))

	return s.commit(ctx, true)
}

// MoveLink inserts the payload's link into target before position index,
// or appends it when index is End or out of range. Index positions refer
// to target as it is before the move. A URLPayload also removes its source
// entry; a TabPayload asks the caller to release the tab.
func (s *Store) MoveLink(ctx context.Context, p model.DragPayload, target string, index int) (MoveResult, error) {
	if !s.data.Has(target) {
		return MoveResult{Commit: unchanged()}, fmt.Errorf("%w: %q", model.ErrListNotFound, target)
	}

	var result MoveResult
	switch v := p.(type) {
	case model.TabPayload:
		s.insert(target, index, v.Link())
		result.ReleaseTabID = v.TabID
		s.log.Info("tab saved", logger.String("list", target), logger.Int("tab", v.TabID))

	case model.URLPayload:
		if !s.sourceMatches(v) {
			s.log.Warn("stale drag source, ignoring drop",
				logger.String("source", v.SourceList),
				logger.Int("index", v.SourceIndex),
				logger.String("target", target))
			return MoveResult{Commit: unchanged()}, nil
		}
		if v.SourceList == target && index >= 0 && index > v.SourceIndex {
			index--
		}
		s.data.Lists[v.SourceList] = slices.Delete(s.data.Lists[v.SourceList], v.SourceIndex, v.SourceIndex+1)
		s.insert(target, index, v.Link())
		s.log.Info("link moved",
			logger.String("from", v.SourceList),
			logger.Int("index", v.SourceIndex),
			logger.String("to", target))

	default:
		return MoveResult{Commit: unchanged()}, fmt.Errorf("%w: %s cannot be dropped into a list", model.ErrInvalidPayload, p.Kind())
	}

	result.Applied = true
	result.Commit = s.commit(ctx, true)
	return result, nil
}

func (s *Store) sourceMatches(p model.URLPayload) bool {
	links, ok := s.data.Lists[p.SourceList]
	if !ok || p.SourceIndex < 0 || p.SourceIndex >= len(links) {
		return false
	}
	return links[p.SourceIndex].URL == p.URL
}

func (s *Store) insert(name string, index int, link model.Link) {
	links := s.data.Lists[name]
	if index < 0 || index > len(links) {
		index = len(links)
	}
	s.data.Lists[name] = slices.Insert(links, index, link)
}

// ReorderLists removes source from the order and reinserts it at target's
// original position, so a list moved down lands after target and a list
// moved up lands before it.
func (s *Store) ReorderLists(ctx context.Context, source, target string) storage.Commit {
	from := s.data.Index(source)
	to := s.data.Index(target)
	if from < 0 || to < 0 || from == to {
		return unchanged()
	}

	order := slices.Delete(s.data.Order, from, from+1)
	s.data.Order = slices.Insert(order, to, source)
	s.log.Info("lists reordered", logger.String("list", source), logger.Int("position", to))

	return s.commit(ctx, false)
}

// Drop applies any drag payload dropped on target: lists are reordered,
// links and tabs are moved.
func (s *Store) Drop(ctx context.Context, p model.DragPayload, target string, index int) (MoveResult, error) {
	if lp, ok := p.(model.ListPayload); ok {
		c := s.ReorderLists(ctx, lp.SourceList, target)
		return MoveResult{Applied: c.Outcome != storage.Unchanged, Commit: c}, nil
	}
	return s.MoveLink(ctx, p, target, index)
}

// DeleteLink removes the link at index. A stale index is logged and ignored.
func (s *Store) DeleteLink(ctx context.Context, name string, index int) storage.Commit {
	links, ok := s.data.Lists[name]
	if !ok {
		s.log.Warn("delete from missing list ignored", logger.String("list", name))
		return unchanged()
	}
	if index < 0 || index >= len(links) {
		s.log.Warn("delete link ignored",
			logger.String("list", name),
			logger.Int("index", index),
			logger.Error(model.ErrIndexOutOfRange))
		return unchanged()
	}

	s.data.Lists[name] = slices.Delete(links, index, index+1)
	s.log.Info("link deleted", logger.String("list", name), logger.Int("index", index))

	return s.commit(ctx, false)
}

// AddLink appends link to the named list.
func (s *Store) AddLink(ctx context.Context, name string, link model.Link) (storage.Commit, error) {
	if strings.TrimSpace(link.URL) == "" {
		return unchanged(), model.ErrInvalidURL
	}
	if !s.data.Has(name) {
		return unchanged(), fmt.Errorf("%w: %q", model.ErrListNotFound, name)
	}

	s.insert(name, End, link)
	s.log.Info("link added", logger.String("list", name), logger.String("url", link.URL))

	return s.commit(ctx, true), nil
}

// OpenAllLinks returns the links of a list that can be opened, and those
// skipped because their URL is not a valid absolute URL. Storage is not touched.
func (s *Store) OpenAllLinks(name string) (valid, skipped []model.Link, err error) {
	links, ok := s.data.Lists[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", model.ErrListNotFound, name)
	}

	valid = []model.Link{}
	for _, l := range links {
		if err := l.Validate(); err != nil {
			s.log.Warn("skipping invalid URL", logger.String("list", name), logger.String("url", l.URL))
			skipped = append(skipped, l)
			continue
		}
		valid = append(valid, l)
	}
	return valid, skipped, nil
}

// Search returns links whose title or URL contains query, in display order.
func (s *Store) Search(query string) []SearchHit {
	var hits []SearchHit
	for _, name := range s.data.Order {
		for i, l := range s.data.Lists[name] {
			if l.Matches(query) {
				hits = append(hits, SearchHit{List: name, Index: i, Link: l})
			}
		}
	}
	return hits
}

// Export wraps the current collection in a portable document.
func (s *Store) Export(now time.Time) transfer.Document {
	return transfer.Export(s.data, now)
}

// Import replaces the collection with the contents of an exported
// document. On error the current collection is left as it was.
func (s *Store) Import(ctx context.Context, raw []byte) (storage.Commit, error) {
	c, err := transfer.Decode(raw)
	if err != nil {
		return unchanged(), err
	}

	s.data = c
	s.log.Info("collection imported",
		logger.Int("lists", len(c.Order)),
		logger.Int("links", c.LinkCount()))

	return s.commit(ctx, true), nil
}

// Backups lists stored snapshots, newest first.
func (s *Store) Backups(ctx context.Context) ([]model.Backup, error) {
	return s.backups.List(ctx)
}

// RestoreBackup replaces the collection with the snapshot stored under key.
func (s *Store) RestoreBackup(ctx context.Context, key int64) (storage.Commit, error) {
	b, err := s.backups.Get(ctx, key)
	if err != nil {
		return unchanged(), fmt.Errorf("backup %d: %w", key, err)
	}

	s.data = migrate.Repair(b.Data)
	s.log.Info("backup restored", logger.Int64("key", key), logger.Int("lists", len(s.data.Order)))

	return s.commit(ctx, false), nil
}
