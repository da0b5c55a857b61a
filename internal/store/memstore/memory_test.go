package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yiblet/cliphist/internal/indexlist"
	"github.com/yiblet/cliphist/internal/store"
	"github.com/yiblet/cliphist/internal/store/oplog"
	"github.com/yiblet/cliphist/internal/writequeue"
)

func encode(t *testing.T, ops ...oplog.Op) []byte {
	t.Helper()
	var out []byte
	for _, op := range ops {
		var err error
		out, err = op.AppendTo(out)
		if err != nil {
			t.Fatalf("AppendTo(%v) error: %v", op.Code, err)
		}
	}
	return out
}

func listTexts(l *indexlist.List) []string {
	var out []string
	for e := range l.All() {
		out = append(out, e.Text)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestMemoryStore_Basic tests basic store creation.
func TestMemoryStore_Basic(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if s.Log() == nil {
		t.Fatal("Log() returned nil")
	}
	if s.Config() == nil {
		t.Fatal("Config() returned nil")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

// TestLogStore_Records checks that each call appends exactly its record.
func TestLogStore_Records(t *testing.T) {
	l := NewLogStore()

	l.StoreText("hello")
	l.StoreText("world")
	l.SetFavorite(1, true)
	l.MoveToEnd(2)
	l.SetFavorite(1, false)
	l.Delete(2, false)

	want := encode(t,
		oplog.Save("hello"),
		oplog.Save("world"),
		oplog.Favorite(1, true),
		oplog.MoveToEnd(2),
		oplog.Favorite(1, false),
		oplog.Delete(2),
	)
	if got := l.Bytes(); string(got) != string(want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
	if l.Ops() != 6 {
		t.Errorf("Ops() = %d, want 6", l.Ops())
	}
	// unfavorite 2 + move 1 + delete 2
	if l.Wasted() != 5 {
		t.Errorf("Wasted() = %d, want 5", l.Wasted())
	}
}

func TestLogStore_LoadState(t *testing.T) {
	l := NewLogStore()
	l.StoreText("a")
	l.StoreText("b")
	l.StoreText("c")
	l.SetFavorite(2, true)
	l.Delete(1, false)

	state, err := l.LoadState(context.Background())
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if got := listTexts(state.Entries); !equal(got, []string{"c"}) {
		t.Errorf("entries = %v, want [c]", got)
	}
	if got := listTexts(state.Favorites); !equal(got, []string{"b"}) {
		t.Errorf("favorites = %v, want [b]", got)
	}
	if state.NextDiskID != 4 {
		t.Errorf("NextDiskID = %d, want 4", state.NextDiskID)
	}
	if l.Wasted() != 2 {
		t.Errorf("Wasted() = %d, want 2", l.Wasted())
	}
}

func TestLogStore_EmbeddedNUL(t *testing.T) {
	l := NewLogStore()

	err := l.StoreText("a\x00b").Err()
	if !errors.Is(err, oplog.ErrEmbeddedNUL) {
		t.Fatalf("StoreText error = %v, want ErrEmbeddedNUL", err)
	}
	if len(l.Bytes()) != 0 {
		t.Errorf("rejected record left %d bytes in the log", len(l.Bytes()))
	}
}

func TestLogStore_Compaction(t *testing.T) {
	l := NewLogStore()
	l.SetMaxWastedOps(4)

	entries := indexlist.New()
	var all []*indexlist.Entry
	for i := range 5 {
		e := indexlist.NewText(uint64(i+1), fmt.Sprint("item ", i))
		e.DiskID = uint32(i + 1)
		entries.Append(e)
		all = append(all, e)
		l.StoreText(e.Text)
	}
	build := func() []store.LiveEntry {
		var live []store.LiveEntry
		for e := range entries.All() {
			live = append(live, store.LiveEntry{Entry: e, Persist: e.Text != "item 4"})
		}
		return live
	}

	all[0].Detach()
	l.Delete(all[0].DiskID, false)
	if err := l.MaybeCompact(build).Err(); err != nil {
		t.Fatalf("MaybeCompact() error: %v", err)
	}
	if l.Compactions() != 0 {
		t.Fatal("compacted below the threshold")
	}

	all[1].Detach()
	l.Delete(all[1].DiskID, false)
	if err := l.MaybeCompact(build).Err(); err != nil {
		t.Fatalf("MaybeCompact() error: %v", err)
	}
	if l.Compactions() != 1 {
		t.Fatalf("Compactions() = %d, want 1", l.Compactions())
	}
	if l.Wasted() != 0 {
		t.Errorf("Wasted() = %d, want 0", l.Wasted())
	}

	want := encode(t, oplog.Save("item 2"), oplog.Save("item 3"))
	if got := l.Bytes(); string(got) != string(want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
	if all[2].DiskID != 1 || all[3].DiskID != 2 {
		t.Errorf("disk ids = %d, %d, want 1, 2", all[2].DiskID, all[3].DiskID)
	}
	if all[4].Persisted() {
		t.Error("cache-only entry kept its disk id")
	}
}

func TestLogStore_DamagedLogKeepsPrefix(t *testing.T) {
	data := encode(t, oplog.Save("one"), oplog.Save("two"), oplog.Favorite(1, true))
	data = append(data, 0x7f, 1, 2)

	l := NewLogStoreFrom(data)
	state, err := l.LoadState(context.Background())
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if got := listTexts(state.Entries); !equal(got, []string{"two"}) {
		t.Errorf("entries = %v, want [two]", got)
	}
	if got := listTexts(state.Favorites); !equal(got, []string{"one"}) {
		t.Errorf("favorites = %v, want [one]", got)
	}

	want := encode(t, oplog.Save("two"), oplog.Save("one"), oplog.Favorite(2, true))
	if got := l.Bytes(); string(got) != string(want) {
		t.Errorf("rewritten log = %v, want %v", got, want)
	}
}

func TestLogStore_InconsistentLogIsDiscarded(t *testing.T) {
	l := NewLogStoreFrom(encode(t, oplog.Save("one"), oplog.MoveToEnd(9)))

	state, err := l.LoadState(context.Background())
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if state.Len() != 0 {
		t.Errorf("Len() = %d, want 0", state.Len())
	}
	if len(l.Bytes()) != 0 {
		t.Error("inconsistent log was kept")
	}
}

func TestLogStore_Closed(t *testing.T) {
	l := NewLogStore()
	if err := l.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := l.StoreText("late").Err(); !errors.Is(err, writequeue.ErrClosed) {
		t.Errorf("StoreText after Close = %v, want ErrClosed", err)
	}
}

func TestLogStore_ConcurrentAppends(t *testing.T) {
	l := NewLogStore()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.StoreText(fmt.Sprint("text ", i))
		}()
	}
	wg.Wait()

	state, err := l.LoadState(context.Background())
	if err != nil {
		t.Fatalf("LoadState() error: %v", err)
	}
	if state.Entries.Len() != 20 {
		t.Errorf("entries = %d, want 20", state.Entries.Len())
	}
}

func TestConfigStore_GetAndSet(t *testing.T) {
	c := NewConfigStore()

	if err := c.Set("history-size", "50"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	value, err := c.Get("history-size")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if value != "50" {
		t.Errorf("Get() = %q, want %q", value, "50")
	}

	if err := c.Set("history-size", "80"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if value, _ := c.Get("history-size"); value != "80" {
		t.Errorf("Get() after update = %q, want %q", value, "80")
	}

	if _, err := c.Get("missing"); err == nil {
		t.Error("Get() of a missing key should fail")
	}
}

func TestConfigStore_ListAndDelete(t *testing.T) {
	c := NewConfigStore()
	c.Set("a", "1")
	c.Set("b", "2")

	all, err := c.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d keys, want 2", len(all))
	}

	// the returned map is a copy
	all["c"] = "3"
	if _, err := c.Get("c"); err == nil {
		t.Error("List() exposed the internal map")
	}

	if err := c.Delete("a"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := c.Delete("a"); err == nil {
		t.Error("Delete() of a missing key should fail")
	}
}
