// Package memstore provides an in-memory implementation of the store interfaces.
// This implementation is designed for fast unit testing and does not persist data.
//
// The log store encodes records exactly as the on-disk store does, so tests
// can inspect the bytes a sequence of calls produces.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/yiblet/cliphist/internal/indexlist"
	"github.com/yiblet/cliphist/internal/store"
	"github.com/yiblet/cliphist/internal/store/oplog"
	"github.com/yiblet/cliphist/internal/writequeue"
)

// DefaultMaxWastedOps matches the on-disk store's compaction threshold.
const DefaultMaxWastedOps = 500

// MemoryStore bundles an in-memory log store and config store.
// Data is not persisted and exists only for the lifetime of the process.
type MemoryStore struct {
	log    *LogStore
	config *ConfigStore
}

// NewMemoryStore creates a new in-memory store for testing.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		log:    NewLogStore(),
		config: NewConfigStore(),
	}
}

// Log returns the log store.
func (m *MemoryStore) Log() *LogStore {
	return m.log
}

// Config returns the config store.
func (m *MemoryStore) Config() *ConfigStore {
	return m.config
}

// Close releases resources (no-op for memory store).
func (m *MemoryStore) Close() error {
	return nil
}

// LogStore implements store.LogStore on a byte buffer. Every call completes
// before it returns, so the Pending it hands back is already resolved.
type LogStore struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	w           *oplog.Writer
	wasted      int64
	maxWasted   int64
	ops         int
	compactions int
	closed      bool
}

var _ store.LogStore = (*LogStore)(nil)

// NewLogStore creates an empty in-memory log.
func NewLogStore() *LogStore {
	l := &LogStore{maxWasted: DefaultMaxWastedOps}
	l.w = oplog.NewWriter(&l.buf)
	return l
}

// NewLogStoreFrom creates a log store holding a copy of data, as if it had
// been read from disk.
func NewLogStoreFrom(data []byte) *LogStore {
	l := NewLogStore()
	l.buf.Write(data)
	return l
}

// SetMaxWastedOps changes the compaction threshold.
func (l *LogStore) SetMaxWastedOps(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxWasted = n
}

// Init is a no-op.
func (l *LogStore) Init() error {
	return nil
}

// LoadState replays the buffer. A damaged log keeps its intact prefix; an
// inconsistent one is discarded.
func (l *LogStore) LoadState(ctx context.Context) (*store.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := oplog.Replay(bytes.NewReader(l.buf.Bytes()))
	if err != nil {
		var rerr *oplog.ReplayError
		if !errors.As(err, &rerr) {
			return nil, errors.Wrap(err, "replay memory log")
		}
		if !rerr.Partial {
			l.buf.Reset()
			l.wasted = 0
			return store.NewState(), nil
		}

		state := stateOf(res)
		snaps := make([]oplog.Snapshot, 0, state.Len())
		for _, list := range []*indexlist.List{state.Entries, state.Favorites} {
			for e := range list.All() {
				snaps = append(snaps, oplog.SnapshotOf(e))
				e.DiskID = uint32(len(snaps))
			}
		}
		state.NextDiskID = uint32(len(snaps)) + 1
		if err := l.rewriteLocked(snaps); err != nil {
			return nil, err
		}
		return state, nil
	}

	l.wasted = res.Wasted
	return stateOf(res), nil
}

// StoreText appends a save record.
func (l *LogStore) StoreText(text string) *writequeue.Pending {
	return l.append(oplog.Save(text), 0)
}

// Delete appends a delete record.
func (l *LogStore) Delete(diskID uint32, wasFavorite bool) *writequeue.Pending {
	waste := int64(2)
	if wasFavorite {
		waste++
	}
	return l.append(oplog.Delete(diskID), waste)
}

// SetFavorite appends a favorite or unfavorite record.
func (l *LogStore) SetFavorite(diskID uint32, favorite bool) *writequeue.Pending {
	var waste int64
	if !favorite {
		waste = 2
	}
	return l.append(oplog.Favorite(diskID, favorite), waste)
}

// MoveToEnd appends a move-to-end record.
func (l *LogStore) MoveToEnd(diskID uint32) *writequeue.Pending {
	return l.append(oplog.MoveToEnd(diskID), 1)
}

// CompactNow replaces the buffer with a compacted log of build's entries.
func (l *LogStore) CompactNow(build store.StateBuilder) *writequeue.Pending {
	l.mu.Lock()
	l.wasted = 0
	l.mu.Unlock()

	live := build()
	snaps := make([]oplog.Snapshot, 0, len(live))
	for _, le := range live {
		if !le.Persist {
			le.Entry.DiskID = 0
			continue
		}
		if le.Entry.Type != indexlist.KindText {
			panic(fmt.Sprintf("memstore: cannot persist entry %d of kind %d", le.Entry.ID, le.Entry.Type))
		}
		snaps = append(snaps, oplog.SnapshotOf(le.Entry))
		le.Entry.DiskID = uint32(len(snaps))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return writequeue.Resolved(writequeue.ErrClosed)
	}
	return writequeue.Resolved(l.rewriteLocked(snaps))
}

// MaybeCompact compacts once the waste count reaches the threshold.
func (l *LogStore) MaybeCompact(build store.StateBuilder) *writequeue.Pending {
	l.mu.Lock()
	due := l.wasted >= l.maxWasted
	l.mu.Unlock()
	if !due {
		return writequeue.Resolved(nil)
	}
	return l.CompactNow(build)
}

// Wasted returns the current waste count.
func (l *LogStore) Wasted() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wasted
}

// Close marks the store closed; later calls fail with writequeue.ErrClosed.
func (l *LogStore) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Bytes returns a copy of the encoded log.
func (l *LogStore) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bytes.Clone(l.buf.Bytes())
}

// Ops returns the number of records appended since the last compaction.
func (l *LogStore) Ops() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ops
}

// Compactions returns how often the log has been rewritten.
func (l *LogStore) Compactions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compactions
}

func (l *LogStore) append(op oplog.Op, waste int64) *writequeue.Pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return writequeue.Resolved(writequeue.ErrClosed)
	}
	l.wasted += waste
	if err := l.w.Write(op); err != nil {
		return writequeue.Resolved(err)
	}
	if err := l.w.Flush(); err != nil {
		return writequeue.Resolved(err)
	}
	l.ops++
	return writequeue.Resolved(nil)
}

func (l *LogStore) rewriteLocked(snaps []oplog.Snapshot) error {
	var next bytes.Buffer
	if _, err := oplog.WriteCompacted(&next, snaps); err != nil {
		return errors.Wrap(err, "compact memory log")
	}
	l.buf = next
	l.w = oplog.NewWriter(&l.buf)
	l.ops = 0
	l.compactions++
	return nil
}

func stateOf(res *oplog.Result) *store.State {
	return &store.State{
		Entries:    res.Entries,
		Favorites:  res.Favorites,
		NextID:     res.NextID,
		NextDiskID: uint32(res.NextID),
	}
}

// ConfigStore implements store.ConfigStore using an in-memory map.
type ConfigStore struct {
	mu     sync.RWMutex
	config map[string]string
}

var _ store.ConfigStore = (*ConfigStore)(nil)

// NewConfigStore creates a new in-memory config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]string),
	}
}

// Get retrieves a configuration value by key.
func (m *ConfigStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.config[key]
	if !exists {
		return "", fmt.Errorf("config key not found: %s", key)
	}

	return value, nil
}

// Set stores a configuration value.
func (m *ConfigStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config[key] = value
	return nil
}

// List returns a copy of all configuration key-value pairs.
func (m *ConfigStore) List() (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.config))
	for k, v := range m.config {
		result[k] = v
	}

	return result, nil
}

// Delete removes a configuration key.
func (m *ConfigStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.config[key]; !exists {
		return fmt.Errorf("config key not found: %s", key)
	}

	delete(m.config, key)
	return nil
}

// Close releases resources (no-op for memory store).
func (m *ConfigStore) Close() error {
	return nil
}
