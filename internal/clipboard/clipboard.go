// Package clipboard defines the clipboard the watch command records from.
// Implementations live in the sysboard and mockboard subpackages.
package clipboard

import (
	"context"
	"errors"
)

// ErrUnsupported is returned when no clipboard is available, for example on
// a headless machine.
var ErrUnsupported = errors.New("clipboard not supported")

// Clipboard reads, writes and watches text on a clipboard.
type Clipboard interface {
	// Read returns the current clipboard text.
	Read() (string, error)

	// Write replaces the clipboard text.
	Write(text string) error

	// Watch sends every text copied after the call. The channel is closed
	// once ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
