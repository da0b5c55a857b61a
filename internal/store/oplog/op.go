// Package oplog encodes and decodes the clipboard history operation log.
//
// The log is a flat sequence of records. Every record starts with a one-byte
// opcode. SAVE_TEXT is followed by the UTF-8 text and a terminating NUL byte;
// every other opcode is followed by a little-endian uint32 disk id, the
// 1-based index of the SAVE_TEXT record the operation refers to. There is no
// header, length prefix or checksum.
package oplog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// OpCode identifies a record type. Zero is reserved.
type OpCode uint8

const (
	SaveText OpCode = iota + 1
	DeleteText
	FavoriteItem
	UnfavoriteItem
	MoveItemToEnd
)

var opNames = map[OpCode]string{
	SaveText:       "SAVE_TEXT",
	DeleteText:     "DELETE_TEXT",
	FavoriteItem:   "FAVORITE_ITEM",
	UnfavoriteItem: "UNFAVORITE_ITEM",
	MoveItemToEnd:  "MOVE_ITEM_TO_END",
}

func (c OpCode) String() string {
	if name, ok := opNames[c]; ok {
		return name
	}
	return fmt.Sprintf("OpCode(%d)", uint8(c))
}

// Valid reports whether c is a known opcode.
func (c OpCode) Valid() bool {
	_, ok := opNames[c]
	return ok
}

var (
	// ErrEmbeddedNUL is returned when saving text that contains a NUL byte,
	// which would terminate the record early.
	ErrEmbeddedNUL = errors.New("text contains NUL byte")

	// ErrUnknownOpCode is returned when a record starts with an opcode this
	// package does not know.
	ErrUnknownOpCode = errors.New("unknown opcode")

	// ErrTruncated is returned when the stream ends inside a record.
	ErrTruncated = errors.New("truncated record")
)

// Op is one decoded record.
type Op struct {
	Code OpCode

	// Text is set for SaveText.
	Text string

	// DiskID is set for every other opcode.
	DiskID uint32
}

// Save returns a SaveText op.
func Save(text string) Op { return Op{Code: SaveText, Text: text} }

// Delete returns a DeleteText op.
func Delete(diskID uint32) Op { return Op{Code: DeleteText, DiskID: diskID} }

// Favorite returns a FavoriteItem or UnfavoriteItem op.
func Favorite(diskID uint32, favorite bool) Op {
	if favorite {
		return Op{Code: FavoriteItem, DiskID: diskID}
	}
	return Op{Code: UnfavoriteItem, DiskID: diskID}
}

// MoveToEnd returns a MoveItemToEnd op.
func MoveToEnd(diskID uint32) Op { return Op{Code: MoveItemToEnd, DiskID: diskID} }

// Size returns the encoded length of o.
func (o Op) Size() int {
	if o.Code == SaveText {
		return 1 + len(o.Text) + 1
	}
	return 1 + 4
}

// AppendTo appends the encoding of o to buf.
func (o Op) AppendTo(buf []byte) ([]byte, error) {
	switch o.Code {
	case SaveText:
		if strings.IndexByte(o.Text, 0) >= 0 {
			return buf, errors.WithStack(ErrEmbeddedNUL)
		}
		buf = append(buf, byte(o.Code))
		buf = append(buf, o.Text...)
		return append(buf, 0), nil
	case DeleteText, FavoriteItem, UnfavoriteItem, MoveItemToEnd:
		buf = append(buf, byte(o.Code))
		return binary.LittleEndian.AppendUint32(buf, o.DiskID), nil
	default:
		return buf, errors.Wrapf(ErrUnknownOpCode, "encode %s", o.Code)
	}
}

// Encode returns the encoding of o.
func (o Op) Encode() ([]byte, error) {
	return o.AppendTo(make([]byte, 0, o.Size()))
}

// Writer writes encoded ops to a buffered stream.
type Writer struct {
	w       *bufio.Writer
	scratch []byte
	written int64
}

// NewWriter returns a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes o into the buffer. Nothing is written to the underlying
// stream for an op that fails to encode.
func (w *Writer) Write(o Op) error {
	buf, err := o.AppendTo(w.scratch[:0])
	if err != nil {
		return err
	}
	w.scratch = buf

	n, err := w.w.Write(buf)
	w.written += int64(n)
	if err != nil {
		return errors.Wrapf(err, "write %s", o.Code)
	}
	return nil
}

// Flush writes buffered records to the underlying stream.
func (w *Writer) Flush() error {
	return errors.Wrap(w.w.Flush(), "flush op log")
}

// Written returns the number of bytes accepted by Write.
func (w *Writer) Written() int64 {
	return w.written
}
