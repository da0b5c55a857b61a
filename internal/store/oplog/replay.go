package oplog

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/yiblet/cliphist/internal/indexlist"
)

var (
	// ErrUnknownDiskID is returned when a record refers to a save record that
	// no list holds.
	ErrUnknownDiskID = errors.New("unknown disk id")

	// ErrWrongList is returned when a favorite record targets an entry that
	// is already a favorite, or an unfavorite record targets one that is not.
	ErrWrongList = errors.New("entry is in the wrong list")
)

// Waste weights of replayed records. A record is wasted when a compacted log
// would not contain it.
const (
	deleteWaste     = 2
	unfavoriteWaste = 2
	moveWaste       = 1
)

// Result is the state rebuilt by Replay.
type Result struct {
	Entries   *indexlist.List
	Favorites *indexlist.List

	// NextID is one past the id of the last replayed save record. Replay
	// assigns ID == DiskID, so it is also the next disk id.
	NextID uint64

	// Wasted counts the records a compaction would drop.
	Wasted int64

	// Ops counts replayed records.
	Ops int

	// ValidLength is the byte length of the records that were applied.
	ValidLength int64
}

// ReplayError describes where and how a replay stopped.
type ReplayError struct {
	// Offset is the byte offset of the offending record.
	Offset int64

	// Partial is set when the records before Offset are intact and the
	// returned Result reflects them. Otherwise the log contradicts itself
	// and the Result must not be used.
	Partial bool

	Err error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay stopped at offset %d: %v", e.Offset, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Replay rebuilds history from a log stream. On failure it returns the
// Result built so far together with a *ReplayError.
func Replay(r io.Reader) (*Result, error) {
	out := &Result{
		Entries:   indexlist.New(),
		Favorites: indexlist.New(),
		NextID:    1,
	}

	rd := NewReader(r)
	for {
		op, err := rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, &ReplayError{Offset: rd.Offset(), Partial: true, Err: err}
		}

		if err := out.apply(op); err != nil {
			// the record was read in full, so it starts where its size ends
			return out, &ReplayError{Offset: rd.Offset() - int64(op.Size()), Err: err}
		}
		out.Ops++
		out.ValidLength = rd.Offset()
	}
}

func (res *Result) apply(op Op) error {
	switch op.Code {
	case SaveText:
		e := indexlist.NewText(res.NextID, op.Text)
		e.DiskID = uint32(res.NextID)
		res.NextID++
		res.Entries.Append(e)

	case DeleteText:
		e, err := res.find(op)
		if err != nil {
			return err
		}
		e.Detach()
		res.Wasted += deleteWaste

	case FavoriteItem:
		e := res.Entries.FindByID(uint64(op.DiskID))
		if e == nil {
			return res.missing(op)
		}
		e.Favorite = true
		res.Favorites.Append(e)

	case UnfavoriteItem:
		e := res.Favorites.FindByID(uint64(op.DiskID))
		if e == nil {
			return res.missing(op)
		}
		e.Favorite = false
		res.Entries.Append(e)
		res.Wasted += unfavoriteWaste

	case MoveItemToEnd:
		e, err := res.find(op)
		if err != nil {
			return err
		}
		if e.Favorite {
			res.Favorites.Append(e)
		} else {
			res.Entries.Append(e)
		}
		res.Wasted += moveWaste

	default:
		return errors.Wrapf(ErrUnknownOpCode, "apply %s", op.Code)
	}
	return nil
}

func (res *Result) find(op Op) (*indexlist.Entry, error) {
	id := uint64(op.DiskID)
	if e := res.Entries.FindByID(id); e != nil {
		return e, nil
	}
	if e := res.Favorites.FindByID(id); e != nil {
		return e, nil
	}
	return nil, errors.Wrapf(ErrUnknownDiskID, "%s %d", op.Code, op.DiskID)
}

// missing classifies a lookup failure of a favorite or unfavorite record.
func (res *Result) missing(op Op) error {
	id := uint64(op.DiskID)
	if res.Entries.FindByID(id) != nil || res.Favorites.FindByID(id) != nil {
		return errors.Wrapf(ErrWrongList, "%s %d", op.Code, op.DiskID)
	}
	return errors.Wrapf(ErrUnknownDiskID, "%s %d", op.Code, op.DiskID)
}
