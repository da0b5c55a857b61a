package indexlist

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind discriminates the payload of an entry.
type Kind uint8

const (
	// KindText entries carry UTF-8 text.
	KindText Kind = iota + 1
)

// longText is the rune count above which HashText degrades to the length.
const longText = 500

// Entry is one clipboard history item.
type Entry struct {
	// ID is unique for the lifetime of the process.
	ID uint64

	// DiskID is the 1-based position of the entry's save record in the log.
	// Zero means the entry is not persisted.
	DiskID uint32

	Type     Kind
	Text     string
	Favorite bool

	list *List
	prev *Entry
	next *Entry
}

// NewText returns a detached text entry.
func NewText(id uint64, text string) *Entry {
	return &Entry{ID: id, Type: KindText, Text: text}
}

// List returns the owning list, or nil for a detached entry.
func (e *Entry) List() *List { return e.list }

// Next returns the next (newer) entry, or nil.
func (e *Entry) Next() *Entry { return e.next }

// Prev returns the previous (older) entry, or nil.
func (e *Entry) Prev() *Entry { return e.prev }

// Persisted reports whether the entry has a save record in the log.
func (e *Entry) Persisted() bool { return e.DiskID != 0 }

// Weight is the entry's contribution to List.Bytes.
func (e *Entry) Weight() int {
	if e.Type != KindText {
		return 0
	}
	return utf8.RuneCountInString(e.Text)
}

// NextCyclic returns the next entry, wrapping to the head of the owning list.
// It returns nil for a detached entry.
func (e *Entry) NextCyclic() *Entry {
	if e.list == nil {
		return nil
	}
	if e.next != nil {
		return e.next
	}
	return e.list.head
}

// PrevCyclic returns the previous entry, wrapping to the tail of the owning
// list. It returns nil for a detached entry.
func (e *Entry) PrevCyclic() *Entry {
	if e.list == nil {
		return nil
	}
	if e.prev != nil {
		return e.prev
	}
	return e.list.tail
}

// InsertAfter places item directly after e in e's list, moving it out of
// whatever list held it. It returns false when e is detached or item is e.
func (e *Entry) InsertAfter(item *Entry) (bool, error) {
	if item == nil {
		return false, errors.Wrap(ErrInvalidArgument, "insert after: nil entry")
	}
	l := e.list
	if l == nil || e == item {
		return false, nil
	}

	transient := item.list == l
	item.detach(transient)
	l.link(item, e, e.next)
	if !transient {
		l.index(item)
	}
	return true, nil
}

// InsertBefore places item directly before e in e's list, moving it out of
// whatever list held it. It returns false when e is detached or item is e.
func (e *Entry) InsertBefore(item *Entry) (bool, error) {
	if item == nil {
		return false, errors.Wrap(ErrInvalidArgument, "insert before: nil entry")
	}
	l := e.list
	if l == nil || e == item {
		return false, nil
	}

	transient := item.list == l
	item.detach(transient)
	l.link(item, e.prev, e)
	if !transient {
		l.index(item)
	}
	return true, nil
}

// Detach removes e from its list. Detaching a detached entry is a no-op.
func (e *Entry) Detach() {
	e.detach(false)
}

// detach unlinks e. A transient detach keeps the indexes untouched because
// the entry is about to be relinked into the same list.
func (e *Entry) detach(transient bool) {
	l := e.list
	if l == nil {
		return
	}
	if !transient {
		l.unindex(e)
	}

	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}

	e.prev = nil
	e.next = nil
	e.list = nil
	l.length--
}

func (e *Entry) hash() (int32, bool) {
	if e.Type != KindText {
		return 0, false
	}
	return HashText(e.Text), true
}

// HashText narrows content lookups. Texts longer than 500 runes hash to their
// rune count, so equal-length long texts collide; shorter texts use the
// h*31+c rolling hash folded to 32 bits. Callers must confirm matches by
// comparing the full text.
func HashText(text string) int32 {
	if len(text) > longText {
		if n := utf8.RuneCountInString(text); n > longText {
			return int32(n)
		}
	}

	var h int32
	for _, r := range text {
		h = h*31 + r
	}
	return h
}
