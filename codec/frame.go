package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single length-prefixed frame read by ReadFrame.
const MaxFrameSize = 16 << 20

// WriteFrame writes b to w prefixed with its byte length as a four byte
// big endian uint32. The prefix and body go out in a single Write.
func WriteFrame(w io.Writer, b []byte) error {
	if len(b) > MaxFrameSize {
		return fmt.Errorf("codec: frame of %d bytes exceeds maximum %d", len(b), MaxFrameSize)
	}
	buf := make([]byte, 4, 4+len(b))
	binary.BigEndian.PutUint32(buf, uint32(len(b)))
	_, err := w.Write(append(buf, b...))
	return err
}

// ReadFrame reads one length-prefixed frame from r. A clean end of stream
// before the prefix returns io.EOF; an end of stream inside a frame returns
// io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix)
	if size > MaxFrameSize {
		return nil, fmt.Errorf("codec: frame of %d bytes exceeds maximum %d", size, MaxFrameSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
