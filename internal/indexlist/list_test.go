package indexlist

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func texts(l *List) []string {
	var out []string
	for e := range l.All() {
		out = append(out, e.Text)
	}
	return out
}

func requireLinks(t *testing.T, l *List) {
	t.Helper()

	switch l.Len() {
	case 0:
		require.Nil(t, l.Head())
		require.Nil(t, l.Tail())
		return
	case 1:
		require.Same(t, l.Head(), l.Tail())
	}

	count := 0
	var prev *Entry
	for e := l.Head(); e != nil; e = e.Next() {
		require.Same(t, l, e.List())
		require.True(t, prev == e.Prev(), "broken prev link at %d", e.ID)
		prev = e
		count++
	}
	require.Same(t, prev, l.Tail())
	require.Equal(t, l.Len(), count)
}

func requireBytes(t *testing.T, l *List) {
	t.Helper()

	sum := 0
	for e := range l.All() {
		if e.Type == KindText {
			sum += len([]rune(e.Text))
		}
	}
	require.Equal(t, sum, l.Bytes())
}

func TestList_AppendPrepend(t *testing.T) {
	l := New()
	requireLinks(t, l)

	a, b, c := NewText(1, "a"), NewText(2, "b"), NewText(3, "c")
	require.True(t, l.Append(a))
	requireLinks(t, l)

	require.True(t, l.Append(b))
	require.True(t, l.Prepend(c))
	requireLinks(t, l)
	require.Equal(t, []string{"c", "a", "b"}, texts(l))

	require.False(t, l.Append(nil))
	require.False(t, l.Prepend(nil))
	require.False(t, l.Append(b), "tail is already the reference point")
	require.False(t, l.Prepend(c), "head is already the reference point")
	require.Equal(t, 3, l.Len())
}

func TestList_ZeroValue(t *testing.T) {
	var l List
	e := NewText(7, "zero")
	require.True(t, l.Append(e))
	require.Same(t, e, l.FindByID(7))
	require.Same(t, e, l.FindText("zero"))
	require.Equal(t, 4, l.Bytes())
}

func TestList_RepositionWithinList(t *testing.T) {
	l := New()
	a, b, c := NewText(1, "aa"), NewText(2, "bbb"), NewText(3, "c")
	l.Append(a)
	l.Append(b)
	l.Append(c)

	require.True(t, l.Append(a))
	requireLinks(t, l)
	requireBytes(t, l)
	require.Equal(t, []string{"bbb", "c", "aa"}, texts(l))
	require.Equal(t, 3, l.Len())
	require.Len(t, l.byHash[HashText("aa")], 1)

	require.True(t, l.Prepend(a))
	requireLinks(t, l)
	requireBytes(t, l)
	require.Equal(t, []string{"aa", "bbb", "c"}, texts(l))
}

func TestList_MoveBetweenLists(t *testing.T) {
	entries, favorites := New(), New()
	a, b := NewText(1, "alpha"), NewText(2, "beta")
	entries.Append(a)
	entries.Append(b)

	require.True(t, favorites.Append(a))
	requireLinks(t, entries)
	requireLinks(t, favorites)
	requireBytes(t, entries)
	requireBytes(t, favorites)

	require.Same(t, favorites, a.List())
	require.Nil(t, entries.FindByID(1))
	require.Nil(t, entries.FindText("alpha"))
	require.Same(t, a, favorites.FindByID(1))
	require.Same(t, a, favorites.FindText("alpha"))
	require.Equal(t, 1, entries.Len())
	require.Equal(t, 1, favorites.Len())

	require.True(t, entries.Prepend(a))
	require.Equal(t, 0, favorites.Len())
	require.Equal(t, []string{"alpha", "beta"}, texts(entries))
	requireBytes(t, entries)
	requireBytes(t, favorites)
}

func TestEntry_InsertRelative(t *testing.T) {
	l := New()
	a, b, c := NewText(1, "a"), NewText(2, "b"), NewText(3, "c")
	l.Append(a)

	ok, err := a.InsertAfter(c)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.InsertBefore(b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b", "c"}, texts(l))
	requireLinks(t, l)

	ok, err = a.InsertAfter(a)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = a.InsertAfter(nil)
	require.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = a.InsertBefore(nil)
	require.True(t, errors.Is(err, ErrInvalidArgument))

	detached := NewText(9, "x")
	ok, err = detached.InsertAfter(NewText(10, "y"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEntry_Detach(t *testing.T) {
	l := New()
	a, b, c := NewText(1, "a"), NewText(2, "b"), NewText(3, "c")
	l.Append(a)
	l.Append(b)
	l.Append(c)

	b.Detach()
	requireLinks(t, l)
	require.Equal(t, []string{"a", "c"}, texts(l))
	require.Nil(t, b.List())
	require.Nil(t, l.FindByID(2))

	b.Detach()
	require.Equal(t, 2, l.Len())

	a.Detach()
	requireLinks(t, l)
	c.Detach()
	requireLinks(t, l)
	require.Equal(t, 0, l.Bytes())
	require.Empty(t, l.byHash)
	require.Empty(t, l.byID)
}

func TestList_FindByID(t *testing.T) {
	l := New()
	var all []*Entry
	for i := range 50 {
		e := NewText(uint64(i+1), fmt.Sprintf("text-%d", i))
		all = append(all, e)
		l.Append(e)
	}

	for _, e := range all {
		require.Same(t, e, l.FindByID(e.ID))
	}
	for i, e := range all {
		if i%3 == 0 {
			e.Detach()
		}
	}
	for i, e := range all {
		if i%3 == 0 {
			require.Nil(t, l.FindByID(e.ID))
		} else {
			require.Same(t, e, l.FindByID(e.ID))
		}
	}
}

func TestList_FindText(t *testing.T) {
	t.Run("duplicates return the latest", func(t *testing.T) {
		l := New()
		first, second := NewText(1, "same"), NewText(2, "same")
		l.Append(first)
		l.Append(second)
		require.Same(t, second, l.FindText("same"))

		second.Detach()
		require.Same(t, first, l.FindText("same"))
		require.Nil(t, l.FindText("other"))
	})

	t.Run("short collisions", func(t *testing.T) {
		require.Equal(t, HashText("Aa"), HashText("BB"))

		l := New()
		aa, bb := NewText(1, "Aa"), NewText(2, "BB")
		l.Append(aa)
		l.Append(bb)
		require.Same(t, aa, l.FindText("Aa"))
		require.Same(t, bb, l.FindText("BB"))
	})

	t.Run("long texts collide by length", func(t *testing.T) {
		x := strings.Repeat("x", 600)
		y := strings.Repeat("y", 600)
		require.Equal(t, int32(600), HashText(x))
		require.Equal(t, HashText(x), HashText(y))

		l := New()
		ex, ey := NewText(1, x), NewText(2, y)
		l.Append(ex)
		l.Append(ey)
		require.Same(t, ex, l.FindText(x))
		require.Same(t, ey, l.FindText(y))
	})

	t.Run("multibyte runes count once", func(t *testing.T) {
		s := strings.Repeat("é", 501)
		require.Equal(t, int32(501), HashText(s))
		require.NotEqual(t, int32(400), HashText(strings.Repeat("é", 400)))
	})
}

func TestList_ByteAccountingRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	lists := []*List{New(), New()}
	var all []*Entry
	for i := range 200 {
		all = append(all, NewText(uint64(i+1), strings.Repeat("ü", rng.IntN(20))))
	}

	for range 2000 {
		e := all[rng.IntN(len(all))]
		switch rng.IntN(4) {
		case 0:
			lists[rng.IntN(2)].Append(e)
		case 1:
			lists[rng.IntN(2)].Prepend(e)
		case 2:
			e.Detach()
		case 3:
			if other := all[rng.IntN(len(all))]; other.List() != nil {
				_, err := other.InsertAfter(e)
				require.NoError(t, err)
			}
		}
	}

	owned := 0
	for _, l := range lists {
		requireLinks(t, l)
		requireBytes(t, l)
		owned += l.Len()
	}
	for _, e := range all {
		if e.List() != nil {
			owned--
			require.Same(t, e, e.List().FindByID(e.ID))
		}
	}
	require.Zero(t, owned, "every entry belongs to exactly one list")
}

func TestList_Iteration(t *testing.T) {
	l := New()
	for i := range 5 {
		l.Append(NewText(uint64(i+1), fmt.Sprint(i)))
	}

	require.Equal(t, texts(l), texts(l), "iteration restarts from the head")

	var back []string
	for e := range l.Backward() {
		back = append(back, e.Text)
	}
	require.Equal(t, []string{"4", "3", "2", "1", "0"}, back)

	for e := range l.All() {
		if e.ID%2 == 0 {
			e.Detach()
		}
	}
	require.Equal(t, []string{"0", "2", "4"}, texts(l))
	require.Len(t, l.Slice(), 3)

	var first []string
	for e := range l.All() {
		first = append(first, e.Text)
		break
	}
	require.Equal(t, []string{"0"}, first)
}

func TestEntry_Cyclic(t *testing.T) {
	l := New()
	a, b, c := NewText(1, "a"), NewText(2, "b"), NewText(3, "c")

	require.Nil(t, a.NextCyclic())
	require.Nil(t, a.PrevCyclic())

	l.Append(a)
	require.Same(t, a, a.NextCyclic())
	require.Same(t, a, a.PrevCyclic())

	l.Append(b)
	l.Append(c)
	require.Same(t, b, a.NextCyclic())
	require.Same(t, a, c.NextCyclic())
	require.Same(t, c, a.PrevCyclic())
	require.Same(t, b, c.PrevCyclic())
}
