// Package logstore persists clipboard history in an append-only operation
// log on disk and compacts it when enough of it has become obsolete.
//
// All file access happens on the store's write queue, one task at a time, so
// records land in the log in the order the calls were made. The only state
// shared with callers is the waste counter.
package logstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/yiblet/cliphist/internal/cachefs"
	"github.com/yiblet/cliphist/internal/indexlist"
	"github.com/yiblet/cliphist/internal/metrics"
	"github.com/yiblet/cliphist/internal/store"
	"github.com/yiblet/cliphist/internal/store/oplog"
	"github.com/yiblet/cliphist/internal/writequeue"
)

const (
	DefaultLogName      = "database.log"
	DefaultMaxWastedOps = 500
	DefaultWriteRetries = 3
)

// Runtime waste weights. Deleting a favorite also obsoletes its favorite
// record.
const (
	deleteWaste         = 2
	deleteFavoriteWaste = 1
	unfavoriteWaste     = 2
	moveWaste           = 1
)

// Store is a store.LogStore backed by a file in a cachefs.Dir.
type Store struct {
	dir     *cachefs.Dir
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	queue   *writequeue.Queue

	logName      string
	legacyPath   string
	maxWasted    int64
	writeRetries uint64

	wasted atomic.Int64

	// owned by queue tasks
	file *os.File
	w    *oplog.Writer
}

var _ store.LogStore = (*Store)(nil)

// New returns a store for the log in dir. Nothing is read or written until
// Init and LoadState are called.
func New(dir *cachefs.Dir, logger logrus.FieldLogger, opts ...Option) (*Store, error) {
	s := &Store{
		dir:          dir,
		logger:       logger.WithField("component", "logstore"),
		logName:      DefaultLogName,
		maxWasted:    DefaultMaxWastedOps,
		writeRetries: DefaultWriteRetries,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "apply logstore option")
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	s.queue = writequeue.New(s.logger, writequeue.WithDepthGauge(s.metrics.QueueDepth))
	return s, nil
}

// Init creates the cache directory.
func (s *Store) Init() error {
	return s.dir.MkdirAll()
}

// LogPath returns the absolute path of the log file.
func (s *Store) LogPath() string {
	return s.dir.Path(s.logName)
}

// LoadState replays the log. When there is no log, the legacy snapshot is
// migrated if present. A log that fails to replay is moved aside; if the
// records before the damage are intact they are kept and rewritten as a
// fresh log, otherwise history starts out empty.
func (s *Store) LoadState(ctx context.Context) (*store.State, error) {
	var state *store.State
	err := s.queue.Submit("load", func() error {
		var err error
		state, err = s.load()
		return err
	}).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) load() (*store.State, error) {
	f, err := s.dir.Open(s.logName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.loadLegacy()
		}
		return nil, errors.Wrap(err, "open op log")
	}

	res, err := oplog.Replay(f)
	f.Close()
	if err == nil {
		s.setWasted(res.Wasted)
		s.metrics.LogBytes.Set(float64(res.ValidLength))
		s.logger.WithField("action", "load").
			WithField("ops", res.Ops).
			WithField("wasted", res.Wasted).
			Debug("replayed op log")
		return stateOf(res), nil
	}

	var rerr *oplog.ReplayError
	if !errors.As(err, &rerr) {
		return nil, errors.Wrap(err, "replay op log")
	}
	if rerr.Partial && !errors.Is(err, oplog.ErrUnknownOpCode) && !errors.Is(err, oplog.ErrTruncated) {
		// an I/O failure says nothing about the file's content
		return nil, errors.Wrap(err, "read op log")
	}

	aside, qerr := s.dir.Quarantine(s.logName)
	if qerr != nil {
		return nil, multierror.Append(err, qerr)
	}
	s.metrics.Quarantines.Inc()
	log := s.logger.WithField("action", "load").
		WithField("quarantined_as", aside).
		WithField("valid_length", res.ValidLength).
		WithError(err)

	if !rerr.Partial {
		log.Warn("op log is inconsistent, starting with empty history")
		s.setWasted(0)
		return store.NewState(), nil
	}

	// Syntactic damage keeps the records replayed so far instead of
	// starting empty.
	log.Warn("op log is damaged, keeping the intact prefix")
	s.setWasted(0)
	state := stateOf(res)
	if err := s.rewrite(snapshotState(state)); err != nil {
		return nil, err
	}
	return state, nil
}

// StoreText appends a save record.
func (s *Store) StoreText(text string) *writequeue.Pending {
	return s.appendOp(oplog.Save(text), 0)
}

// Delete appends a delete record.
func (s *Store) Delete(diskID uint32, wasFavorite bool) *writequeue.Pending {
	waste := int64(deleteWaste)
	if wasFavorite {
		waste += deleteFavoriteWaste
	}
	return s.appendOp(oplog.Delete(diskID), waste)
}

// SetFavorite appends a favorite or unfavorite record.
func (s *Store) SetFavorite(diskID uint32, favorite bool) *writequeue.Pending {
	var waste int64
	if !favorite {
		waste = unfavoriteWaste
	}
	return s.appendOp(oplog.Favorite(diskID, favorite), waste)
}

// MoveToEnd appends a move-to-end record.
func (s *Store) MoveToEnd(diskID uint32) *writequeue.Pending {
	return s.appendOp(oplog.MoveToEnd(diskID), moveWaste)
}

// Wasted returns the current waste count.
func (s *Store) Wasted() int64 {
	return s.wasted.Load()
}

// MaybeCompact compacts once the waste count reaches the threshold.
func (s *Store) MaybeCompact(build store.StateBuilder) *writequeue.Pending {
	if s.wasted.Load() < s.maxWasted {
		return writequeue.Resolved(nil)
	}
	return s.CompactNow(build)
}

// CompactNow rewrites the log from build's entries. Disk ids are assigned
// before CompactNow returns, so callers may keep appending right away.
func (s *Store) CompactNow(build store.StateBuilder) *writequeue.Pending {
	s.setWasted(0)

	live := build()
	snaps := make([]oplog.Snapshot, 0, len(live))
	for _, le := range live {
		if !le.Persist {
			le.Entry.DiskID = 0
			continue
		}
		if le.Entry.Type != indexlist.KindText {
			panic(fmt.Sprintf("logstore: cannot persist entry %d of kind %d", le.Entry.ID, le.Entry.Type))
		}
		snaps = append(snaps, oplog.SnapshotOf(le.Entry))
		le.Entry.DiskID = uint32(len(snaps))
	}

	return s.queue.Submit("compact", func() error {
		return s.rewrite(snaps)
	})
}

// Flush waits until every record submitted so far has been written.
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.Drain(ctx)
}

// Close flushes outstanding records and closes the log.
func (s *Store) Close(ctx context.Context) error {
	var result *multierror.Error

	if err := s.queue.Submit("close", s.closeWriter).Wait(ctx); err != nil && !errors.Is(err, writequeue.ErrClosed) {
		result = multierror.Append(result, err)
	}
	if err := s.queue.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *Store) appendOp(op oplog.Op, waste int64) *writequeue.Pending {
	if waste > 0 {
		s.addWaste(waste)
	}
	name := op.Code.String()
	return s.queue.Submit(name, func() error {
		err := s.write(op)
		s.metrics.ObserveOp(name, err)
		return err
	})
}

func (s *Store) write(op oplog.Op) error {
	if err := s.openWriter(); err != nil {
		return err
	}
	if err := s.w.Write(op); err != nil {
		if errors.Is(err, oplog.ErrEmbeddedNUL) {
			return err
		}
		s.dropWriter()
		return err
	}
	if err := s.w.Flush(); err != nil {
		s.dropWriter()
		return err
	}
	return nil
}

// openWriter opens the append handle on first use. Opening is retried since
// nothing has been written yet; writes themselves are never retried.
func (s *Store) openWriter() error {
	if s.w != nil {
		return nil
	}

	open := func() error {
		f, err := s.dir.OpenAppend(s.logName)
		if err != nil {
			return err
		}
		s.file = f
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.WithField("action", "open_log").
			WithError(err).
			Warnf("opening op log failed, retrying in %s", wait)
	}
	if err := backoff.RetryNotify(open, backoff.WithMaxRetries(newBackOff(), s.writeRetries), notify); err != nil {
		return errors.Wrap(err, "open op log for appending")
	}

	s.w = oplog.NewWriter(s.file)
	return nil
}

func (s *Store) closeWriter() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.w = nil
	return errors.Wrap(err, "close op log")
}

// dropWriter closes a handle that failed mid-write; the next write reopens.
func (s *Store) dropWriter() {
	if err := s.closeWriter(); err != nil {
		s.logger.WithField("action", "write").WithError(err).Warn("closing failed op log")
	}
}

func (s *Store) rewrite(snaps []oplog.Snapshot) error {
	start := time.Now()
	if err := s.closeWriter(); err != nil {
		s.logger.WithField("action", "compact").WithError(err).Warn("closing op log before compaction")
	}

	var written int64
	err := s.dir.Replace(s.logName, func(w io.Writer) error {
		var err error
		written, err = oplog.WriteCompacted(w, snaps)
		return err
	})
	s.metrics.ObserveCompaction(time.Since(start).Seconds(), err)
	if err != nil {
		return errors.Wrap(err, "compact op log")
	}

	s.metrics.LogBytes.Set(float64(written))
	s.logger.WithField("action", "compact").
		WithField("entries", len(snaps)).
		WithField("bytes", written).
		WithField("took", time.Since(start)).
		Debug("compacted op log")
	return nil
}

func (s *Store) addWaste(n int64) {
	s.metrics.Wasted.Set(float64(s.wasted.Add(n)))
}

func (s *Store) setWasted(n int64) {
	s.wasted.Store(n)
	s.metrics.Wasted.Set(float64(n))
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

func stateOf(res *oplog.Result) *store.State {
	return &store.State{
		Entries:    res.Entries,
		Favorites:  res.Favorites,
		NextID:     res.NextID,
		NextDiskID: uint32(res.NextID),
	}
}

// snapshotState renumbers the entries of state to match a compacted log,
// entries first, and returns their snapshots.
func snapshotState(state *store.State) []oplog.Snapshot {
	snaps := make([]oplog.Snapshot, 0, state.Len())
	for _, l := range []*indexlist.List{state.Entries, state.Favorites} {
		for e := range l.All() {
			snaps = append(snaps, oplog.SnapshotOf(e))
			e.DiskID = uint32(len(snaps))
		}
	}
	state.NextDiskID = uint32(len(snaps)) + 1
	return snaps
}
