// Package indexlist implements the ordered collections that hold clipboard
// history entries.
//
// A List is a doubly linked list augmented with two indexes: entry id to
// entry, and a hash of the entry text to the ids that share it. Both are kept
// in sync by every link operation, so lookups by id and by content are O(1)
// (content lookups degrade to a scan of the hash bucket).
//
// An entry belongs to at most one list. Appending an entry that is owned by
// another list moves it, carrying its index and byte bookkeeping along.
//
// Lists are not safe for concurrent use.
package indexlist

import (
	"iter"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is returned when a link operation is handed a nil entry.
var ErrInvalidArgument = errors.New("invalid argument")

// List is an ordered sequence of entries, oldest at the head and newest at
// the tail. The zero value is an empty list ready to use.
type List struct {
	head   *Entry
	tail   *Entry
	length int
	bytes  int

	byID   map[uint64]*Entry
	byHash map[int32][]uint64
}

// New returns an empty list.
func New() *List {
	return &List{
		byID:   make(map[uint64]*Entry),
		byHash: make(map[int32][]uint64),
	}
}

// Head returns the oldest entry, or nil.
func (l *List) Head() *Entry { return l.head }

// Tail returns the newest entry, or nil.
func (l *List) Tail() *Entry { return l.tail }

// Len returns the number of entries in the list.
func (l *List) Len() int { return l.length }

// Bytes returns the summed weight of the text entries in the list. The unit
// is runes, so the value only approximates the encoded size.
func (l *List) Bytes() int { return l.bytes }

// Append makes e the newest entry of l. It returns false when e is nil or
// already the tail.
func (l *List) Append(e *Entry) bool {
	if e == nil {
		return false
	}
	if l.tail != nil {
		ok, _ := l.tail.InsertAfter(e)
		return ok
	}

	e.detach(false)
	l.link(e, nil, nil)
	l.index(e)
	return true
}

// Prepend makes e the oldest entry of l. It returns false when e is nil or
// already the head.
func (l *List) Prepend(e *Entry) bool {
	if e == nil {
		return false
	}
	if l.head != nil {
		ok, _ := l.head.InsertBefore(e)
		return ok
	}

	e.detach(false)
	l.link(e, nil, nil)
	l.index(e)
	return true
}

// FindByID returns the entry with the given id, or nil.
func (l *List) FindByID(id uint64) *Entry {
	return l.byID[id]
}

// FindText returns the most recently indexed text entry whose text equals
// text, or nil.
func (l *List) FindText(text string) *Entry {
	ids := l.byHash[HashText(text)]
	for i := len(ids) - 1; i >= 0; i-- {
		e := l.byID[ids[i]]
		if e != nil && e.Type == KindText && e.Text == text {
			return e
		}
	}
	return nil
}

// All iterates from head to tail. The successor is read before yielding, so
// the yielded entry may be detached during iteration.
func (l *List) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for e := l.head; e != nil; {
			next := e.next
			if !yield(e) {
				return
			}
			e = next
		}
	}
}

// Backward iterates from tail to head.
func (l *List) Backward() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for e := l.tail; e != nil; {
			prev := e.prev
			if !yield(e) {
				return
			}
			e = prev
		}
	}
}

// Slice returns the entries from head to tail.
func (l *List) Slice() []*Entry {
	out := make([]*Entry, 0, l.length)
	for e := range l.All() {
		out = append(out, e)
	}
	return out
}

// link wires a detached entry between prev and next.
func (l *List) link(e, prev, next *Entry) {
	e.list = l
	e.prev = prev
	e.next = next

	if prev != nil {
		prev.next = e
	} else {
		l.head = e
	}
	if next != nil {
		next.prev = e
	} else {
		l.tail = e
	}
	l.length++
}

func (l *List) index(e *Entry) {
	if l.byID == nil {
		l.byID = make(map[uint64]*Entry)
		l.byHash = make(map[int32][]uint64)
	}
	l.byID[e.ID] = e

	h, ok := e.hash()
	if !ok {
		return
	}
	l.bytes += e.Weight()
	l.byHash[h] = append(l.byHash[h], e.ID)
}

func (l *List) unindex(e *Entry) {
	delete(l.byID, e.ID)

	h, ok := e.hash()
	if !ok {
		return
	}
	l.bytes -= e.Weight()

	ids := l.byHash[h]
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == e.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(l.byHash, h)
	} else {
		l.byHash[h] = ids
	}
}
