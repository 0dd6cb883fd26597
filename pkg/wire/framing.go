// Package wire frames messages onto byte streams and serialises them.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// WriteFrame writes a 4-byte big-endian length followed by the payload.
func WriteFrame(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "failed to write frame length")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write frame payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. Reads are length-exact: EOF
// before the advertised length is an error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read frame length")
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "failed to read frame payload")
	}
	return data, nil
}
