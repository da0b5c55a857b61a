package oplog

import (
	"fmt"
	"io"

	"github.com/yiblet/cliphist/internal/indexlist"
)

// Snapshot is the persisted form of one live entry. Its disk id is its
// 1-based position in the slice handed to WriteCompacted.
type Snapshot struct {
	Type     indexlist.Kind
	Text     string
	Favorite bool
}

// SnapshotOf copies the persisted fields of e.
func SnapshotOf(e *indexlist.Entry) Snapshot {
	return Snapshot{Type: e.Type, Text: e.Text, Favorite: e.Favorite}
}

// WriteCompacted writes the shortest log that replays to snaps: one save
// record per snapshot followed by a favorite record for every favorite. It
// returns the number of bytes written.
//
// A snapshot of an unknown kind is a programming error and panics.
func WriteCompacted(w io.Writer, snaps []Snapshot) (int64, error) {
	ow := NewWriter(w)
	for _, s := range snaps {
		switch s.Type {
		case indexlist.KindText:
			if err := ow.Write(Save(s.Text)); err != nil {
				return ow.Written(), err
			}
		default:
			panic(fmt.Sprintf("oplog: cannot compact entry of kind %d", s.Type))
		}
	}

	for i, s := range snaps {
		if !s.Favorite {
			continue
		}
		if err := ow.Write(Favorite(uint32(i+1), true)); err != nil {
			return ow.Written(), err
		}
	}

	if err := ow.Flush(); err != nil {
		return ow.Written(), err
	}
	return ow.Written(), nil
}
