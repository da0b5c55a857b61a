// Package store defines the storage interfaces for cliphist's persistence
// layer. It provides abstractions for the clipboard history operation log and
// for the user settings store.
package store

import (
	"context"

	"github.com/yiblet/cliphist/internal/writequeue"
)

// LogStore persists clipboard history as an append-only operation log.
//
// Mutations are applied by the caller to its in-memory lists first and then
// recorded here, one record per call. Records are written in call order by a
// single writer; each call returns a Pending that resolves once its record
// has reached the log (or failed to).
type LogStore interface {
	// Init prepares the backing storage (creates directories and the like).
	Init() error

	// LoadState rebuilds the history from the log. A missing log yields an
	// empty state. Corrupt logs are recovered from and are not reported as
	// errors.
	LoadState(ctx context.Context) (*State, error)

	// StoreText appends a save record. The new entry's disk id is the number
	// of save records in the log after the append.
	StoreText(text string) *writequeue.Pending

	// Delete appends a delete record for diskID. wasFavorite only affects
	// waste accounting.
	Delete(diskID uint32, wasFavorite bool) *writequeue.Pending

	// SetFavorite appends a favorite or unfavorite record for diskID.
	SetFavorite(diskID uint32, favorite bool) *writequeue.Pending

	// MoveToEnd appends a move-to-end record for diskID.
	MoveToEnd(diskID uint32) *writequeue.Pending

	// CompactNow rewrites the log from the entries returned by build. build
	// runs synchronously before CompactNow returns; entries marked Persist
	// receive disk ids 1..n in builder order, the rest have their disk id
	// cleared.
	CompactNow(build StateBuilder) *writequeue.Pending

	// MaybeCompact calls CompactNow when enough waste has accumulated.
	// Otherwise it returns an already-resolved Pending and build is not
	// called.
	MaybeCompact(build StateBuilder) *writequeue.Pending

	// Wasted returns the number of records a compaction would drop.
	Wasted() int64

	// Close flushes pending records and releases the log.
	Close(ctx context.Context) error
}

// ConfigStore manages settings persistence.
// Settings are stored as key-value pairs.
type ConfigStore interface {
	// Get retrieves a setting by key.
	// Returns an error if the key does not exist.
	Get(key string) (string, error)

	// Set stores a setting.
	// If the key already exists, its value is updated.
	Set(key, value string) error

	// List returns all settings.
	List() (map[string]string, error)

	// Delete removes a setting.
	// Returns an error if the key does not exist.
	Delete(key string) error

	// Close releases any resources.
	Close() error
}
