// Package mockboard provides a mock clipboard implementation for testing.
package mockboard

import (
	"context"
	"sync"

	"github.com/yiblet/cliphist/internal/clipboard"
)

type watcher struct {
	in   chan string
	done <-chan struct{}
}

// MockClipboard implements clipboard.Clipboard in memory. Every Write is
// delivered to all active watchers.
type MockClipboard struct {
	mu       sync.Mutex
	data     string
	watchers map[*watcher]struct{}
}

var _ clipboard.Clipboard = (*MockClipboard)(nil)

// New creates a new MockClipboard instance
func New() *MockClipboard {
	return &MockClipboard{watchers: make(map[*watcher]struct{})}
}

// Read implements clipboard.Clipboard.Read
func (m *MockClipboard) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

// Write implements clipboard.Clipboard.Write. It blocks until every active
// watcher has taken the text.
func (m *MockClipboard) Write(text string) error {
	m.mu.Lock()
	m.data = text
	watchers := make([]*watcher, 0, len(m.watchers))
	for w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	for _, w := range watchers {
		select {
		case w.in <- text:
		case <-w.done:
		}
	}
	return nil
}

// Watch implements clipboard.Clipboard.Watch
func (m *MockClipboard) Watch(ctx context.Context) (<-chan string, error) {
	w := &watcher{in: make(chan string), done: ctx.Done()}
	out := make(chan string, 16)

	m.mu.Lock()
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.watchers, w)
			m.mu.Unlock()
		}()
		for {
			select {
			case text := <-w.in:
				select {
				case out <- text:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Watchers returns the number of active watchers (for testing)
func (m *MockClipboard) Watchers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}
