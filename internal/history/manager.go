// Package history keeps the clipboard history in memory and mirrors every
// change into a store.LogStore.
//
// A Manager is not safe for concurrent use; callers drive it from a single
// goroutine. Disk writes happen asynchronously on the store's queue.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/yiblet/cliphist/internal/indexlist"
	"github.com/yiblet/cliphist/internal/store"
	"github.com/yiblet/cliphist/internal/store/oplog"
	"github.com/yiblet/cliphist/internal/writequeue"
)

// ErrNotFound is returned for ids that are not in the history.
var ErrNotFound = errors.New("entry not found")

// Manager applies history operations to the in-memory lists and records
// them in the log.
type Manager struct {
	store    store.LogStore
	state    *store.State
	settings Settings
	logger   logrus.FieldLogger

	// writes that have not been checked yet
	pending []*writequeue.Pending
}

// Stats summarizes the history.
type Stats struct {
	Entries    int
	Favorites  int
	Bytes      int
	Persisted  int
	Wasted     int64
	NextDiskID uint32
}

// NewManager loads the history from s.
func NewManager(ctx context.Context, s store.LogStore, settings Settings, logger logrus.FieldLogger) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	state, err := s.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	m := &Manager{
		store:    s,
		state:    state,
		settings: settings,
		logger:   logger.WithField("component", "history"),
	}
	m.logger.WithField("entries", state.Entries.Len()).
		WithField("favorites", state.Favorites.Len()).
		Debug("history loaded")

	// a log written before cache-only mode was turned on still holds
	// non-favorites
	if settings.CacheOnlyFavorites && m.persistedEntries() > 0 {
		m.logger.WithField("action", "load").Info("dropping non-favorites from the log")
		m.track(s.CompactNow(m.build))
	}
	return m, nil
}

// Settings returns the active settings.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Entries returns the non-favorite entries, oldest first.
func (m *Manager) Entries() *indexlist.List {
	return m.state.Entries
}

// Favorites returns the favorite entries, oldest first.
func (m *Manager) Favorites() *indexlist.List {
	return m.state.Favorites
}

// Find returns the entry with the given id from either list.
func (m *Manager) Find(id uint64) (*indexlist.Entry, error) {
	if e := m.state.Entries.FindByID(id); e != nil {
		return e, nil
	}
	if e := m.state.Favorites.FindByID(id); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Recent returns up to limit entries of one list, newest first. A limit of
// zero or less returns all of them.
func (m *Manager) Recent(favorites bool, limit int) []*indexlist.Entry {
	l := m.state.Entries
	if favorites {
		l = m.state.Favorites
	}
	out := lo.Reverse(l.Slice())
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search returns the entries of both lists containing query, newest first.
func (m *Manager) Search(query string) []*indexlist.Entry {
	all := append(m.Recent(true, 0), m.Recent(false, 0)...)
	return lo.Filter(all, func(e *indexlist.Entry, _ int) bool {
		return strings.Contains(e.Text, query)
	})
}

// Observe records copied text. An existing entry with the same text is
// reused (and moved to the newest position when MoveItemFirst is set); the
// returned bool reports whether a new entry was created. Text that is empty
// after stripping is ignored and yields a nil entry.
func (m *Manager) Observe(text string) (*indexlist.Entry, bool, error) {
	if m.settings.StripText {
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return nil, false, nil
	}
	if strings.IndexByte(text, 0) >= 0 {
		return nil, false, fmt.Errorf("failed to record text: %w", oplog.ErrEmbeddedNUL)
	}

	if e := m.findText(text); e != nil {
		if m.settings.MoveItemFirst && e.List().Append(e) && e.Persisted() {
			m.track(m.store.MoveToEnd(e.DiskID))
			m.maybeCompact()
		}
		return e, false, nil
	}

	e := indexlist.NewText(m.state.NextID, text)
	m.state.NextID++
	m.state.Entries.Append(e)
	if !m.settings.CacheOnlyFavorites {
		m.persist(e)
	}
	m.logger.WithField("action", "observe").WithField("id", e.ID).Debug("new entry")

	m.prune()
	return e, true, nil
}

// Delete removes an entry from the history.
func (m *Manager) Delete(id uint64) error {
	e, err := m.Find(id)
	if err != nil {
		return err
	}
	m.remove(e)
	m.maybeCompact()
	return nil
}

// ToggleFavorite moves an entry between the two lists. It lands in the
// newest position of its new list.
func (m *Manager) ToggleFavorite(id uint64) (*indexlist.Entry, error) {
	e, err := m.Find(id)
	if err != nil {
		return nil, err
	}

	favorite := !e.Favorite
	if favorite {
		m.state.Favorites.Append(e)
	} else {
		m.state.Entries.Append(e)
	}
	e.Favorite = favorite

	switch {
	case m.settings.CacheOnlyFavorites && favorite:
		if !e.Persisted() {
			m.persist(e)
		}
		m.track(m.store.SetFavorite(e.DiskID, true))
	case m.settings.CacheOnlyFavorites:
		if e.Persisted() {
			m.track(m.store.Delete(e.DiskID, true))
			e.DiskID = 0
		}
	default:
		if !e.Persisted() {
			m.persist(e)
		}
		m.track(m.store.SetFavorite(e.DiskID, favorite))
	}

	m.logger.WithField("action", "favorite").
		WithField("id", e.ID).
		WithField("favorite", favorite).
		Debug("toggled favorite")

	if favorite {
		m.maybeCompact()
	} else {
		m.prune()
	}
	return e, nil
}

// Clear drops every non-favorite entry and rewrites the log.
func (m *Manager) Clear() {
	for e := range m.state.Entries.All() {
		e.Detach()
	}
	m.track(m.store.CompactNow(m.build))
	m.logger.WithField("action", "clear").Info("history cleared")
}

// Compact rewrites the log regardless of waste.
func (m *Manager) Compact() {
	m.track(m.store.CompactNow(m.build))
}

// SetSettings applies new settings. Turning CacheOnlyFavorites on drops
// non-favorites from the log; turning it off writes them back.
func (m *Manager) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	prev := m.settings
	m.settings = s

	if prev.CacheOnlyFavorites != s.CacheOnlyFavorites {
		if s.CacheOnlyFavorites {
			m.track(m.store.CompactNow(m.build))
		} else {
			for e := range m.state.Entries.All() {
				if !e.Persisted() {
					m.persist(e)
				}
			}
		}
	}

	m.prune()
	return nil
}

// Neighbor returns the entry after (or before) id in its list, wrapping
// around at either end.
func (m *Manager) Neighbor(id uint64, forward bool) (*indexlist.Entry, error) {
	e, err := m.Find(id)
	if err != nil {
		return nil, err
	}
	if forward {
		return e.NextCyclic(), nil
	}
	return e.PrevCyclic(), nil
}

// Stats returns counts for both lists and the log.
func (m *Manager) Stats() Stats {
	persisted := 0
	for _, l := range []*indexlist.List{m.state.Entries, m.state.Favorites} {
		for e := range l.All() {
			if e.Persisted() {
				persisted++
			}
		}
	}
	return Stats{
		Entries:    m.state.Entries.Len(),
		Favorites:  m.state.Favorites.Len(),
		Bytes:      m.state.Entries.Bytes() + m.state.Favorites.Bytes(),
		Persisted:  persisted,
		Wasted:     m.store.Wasted(),
		NextDiskID: m.state.NextDiskID,
	}
}

// Sync waits for every write issued so far and returns their errors.
func (m *Manager) Sync(ctx context.Context) error {
	var result *multierror.Error
	for _, p := range m.pending {
		if err := p.Wait(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	m.pending = nil
	return result.ErrorOrNil()
}

// Close waits for outstanding writes and closes the store.
func (m *Manager) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := m.Sync(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := m.store.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (m *Manager) persistedEntries() int {
	n := 0
	for e := range m.state.Entries.All() {
		if e.Persisted() {
			n++
		}
	}
	return n
}

func (m *Manager) findText(text string) *indexlist.Entry {
	if e := m.state.Entries.FindText(text); e != nil {
		return e
	}
	return m.state.Favorites.FindText(text)
}

func (m *Manager) persist(e *indexlist.Entry) {
	e.DiskID = m.state.NextDiskID
	m.state.NextDiskID++
	m.track(m.store.StoreText(e.Text))
}

func (m *Manager) remove(e *indexlist.Entry) {
	wasFavorite := e.Favorite
	e.Detach()
	if e.Persisted() {
		m.track(m.store.Delete(e.DiskID, wasFavorite))
	}
}

// prune drops the oldest non-favorites until the history fits its limits.
// The newest entry is always kept.
func (m *Manager) prune() {
	entries := m.state.Entries
	removed := 0
	for entries.Len() > 1 && (entries.Len() > m.settings.HistorySize || entries.Bytes() > m.settings.MaxBytes()) {
		m.remove(entries.Head())
		removed++
	}
	if removed > 0 {
		m.logger.WithField("action", "prune").WithField("removed", removed).Debug("pruned history")
	}
	m.maybeCompact()
}

func (m *Manager) maybeCompact() {
	m.track(m.store.MaybeCompact(m.build))
}

// build lists the live entries for a compaction, favorites first, and
// resets the disk id counter to match the rewritten log.
func (m *Manager) build() []store.LiveEntry {
	live := make([]store.LiveEntry, 0, m.state.Len())
	persisted := 0
	for _, l := range []*indexlist.List{m.state.Favorites, m.state.Entries} {
		for e := range l.All() {
			keep := !m.settings.CacheOnlyFavorites || e.Favorite
			if keep {
				persisted++
			}
			live = append(live, store.LiveEntry{Entry: e, Persist: keep})
		}
	}
	m.state.NextDiskID = uint32(persisted) + 1
	return live
}

// track remembers p until Sync. Writes that already succeeded are dropped so
// a long-running caller does not accumulate them.
func (m *Manager) track(p *writequeue.Pending) {
	kept := m.pending[:0]
	for _, q := range m.pending {
		select {
		case <-q.Done():
			if q.Err() == nil {
				continue
			}
		default:
		}
		kept = append(kept, q)
	}
	m.pending = append(kept, p)
}
