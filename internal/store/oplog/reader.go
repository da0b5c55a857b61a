package oplog

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Reader decodes records from a stream.
type Reader struct {
	r      *bufio.Reader
	offset int64
	idBuf  [4]byte
}

// NewReader returns a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{r: br}
	}
	return &Reader{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes consumed by fully decoded records.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next decodes the next record. It returns io.EOF at a clean end of stream,
// ErrTruncated when the stream ends inside a record and ErrUnknownOpCode
// for an unrecognized opcode. After an error Offset still points at the
// start of the offending record.
func (r *Reader) Next() (Op, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Op{}, io.EOF
		}
		return Op{}, errors.Wrap(err, "read opcode")
	}

	code := OpCode(b)
	switch code {
	case SaveText:
		text, err := r.r.ReadString(0)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Op{}, errors.Wrapf(ErrTruncated, "%s at offset %d", code, r.offset)
			}
			return Op{}, errors.Wrap(err, "read text")
		}
		r.offset += int64(1 + len(text))
		return Save(text[:len(text)-1]), nil

	case DeleteText, FavoriteItem, UnfavoriteItem, MoveItemToEnd:
		if _, err := io.ReadFull(r.r, r.idBuf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Op{}, errors.Wrapf(ErrTruncated, "%s at offset %d", code, r.offset)
			}
			return Op{}, errors.Wrap(err, "read disk id")
		}
		r.offset += 5
		return Op{Code: code, DiskID: binary.LittleEndian.Uint32(r.idBuf[:])}, nil

	default:
		return Op{}, errors.Wrapf(ErrUnknownOpCode, "opcode %d at offset %d", b, r.offset)
	}
}
