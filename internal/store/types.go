package store

import (
	"github.com/yiblet/cliphist/internal/indexlist"
)

// State is the in-memory history rebuilt from the log.
type State struct {
	// Entries holds the regular history, oldest first.
	Entries *indexlist.List

	// Favorites holds the pinned entries, oldest first.
	Favorites *indexlist.List

	// NextID is the next free process-lifetime entry id.
	NextID uint64

	// NextDiskID is the disk id the next save record will receive.
	NextDiskID uint32
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Entries:    indexlist.New(),
		Favorites:  indexlist.New(),
		NextID:     1,
		NextDiskID: 1,
	}
}

// Len returns the number of entries in both lists.
func (s *State) Len() int {
	return s.Entries.Len() + s.Favorites.Len()
}

// LiveEntry is one entry handed to a compaction.
type LiveEntry struct {
	Entry *indexlist.Entry

	// Persist selects whether the entry is written to the compacted log.
	Persist bool
}

// StateBuilder lists the live entries in the order they should appear in a
// compacted log.
type StateBuilder func() []LiveEntry
