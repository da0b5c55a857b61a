// Package sysboard implements the system clipboard on top of
// golang.design/x/clipboard.
package sysboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/yiblet/cliphist/internal/clipboard"
	xclipboard "golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
)

// SystemClipboard implements clipboard.Clipboard for the desktop clipboard
type SystemClipboard struct{}

var _ clipboard.Clipboard = (*SystemClipboard)(nil)

// New creates a new SystemClipboard instance
func New() *SystemClipboard {
	return &SystemClipboard{}
}

// IsSupported reports whether the system clipboard could be initialized
func (s *SystemClipboard) IsSupported() bool {
	return s.init() == nil
}

func (s *SystemClipboard) init() error {
	initOnce.Do(func() {
		if err := xclipboard.Init(); err != nil {
			initErr = fmt.Errorf("%w: %v", clipboard.ErrUnsupported, err)
		}
	})
	return initErr
}

// Read implements clipboard.Clipboard.Read
func (s *SystemClipboard) Read() (string, error) {
	if err := s.init(); err != nil {
		return "", err
	}
	return string(xclipboard.Read(xclipboard.FmtText)), nil
}

// Write implements clipboard.Clipboard.Write
func (s *SystemClipboard) Write(text string) error {
	if err := s.init(); err != nil {
		return err
	}
	xclipboard.Write(xclipboard.FmtText, []byte(text))
	return nil
}

// Watch implements clipboard.Clipboard.Watch
func (s *SystemClipboard) Watch(ctx context.Context) (<-chan string, error) {
	if err := s.init(); err != nil {
		return nil, err
	}

	changes := xclipboard.Watch(ctx, xclipboard.FmtText)
	out := make(chan string)
	go func() {
		defer close(out)
		for data := range changes {
			select {
			case out <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
