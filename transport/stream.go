package transport

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/progrium/objmux-go/codec"
)

// StreamConn carries messages over a byte stream, each prefixed with its
// length as a four byte big endian integer.
type StreamConn struct {
	rwc io.ReadWriteCloser
	r   *bufio.Reader

	writeMu sync.Mutex
}

// NewStreamConn returns a message connection over rwc.
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	return &StreamConn{
		rwc: rwc,
		r:   bufio.NewReader(rwc),
	}
}

// Send writes msg as one length-prefixed frame.
func (c *StreamConn) Send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return codec.WriteFrame(c.rwc, msg)
}

// Recv reads the next frame. A connection reset by the peer is reported
// as io.EOF.
func (c *StreamConn) Recv() ([]byte, error) {
	b, err := codec.ReadFrame(c.r)
	if err != nil {
		var syscallErr *os.SyscallError
		if errors.As(err, &syscallErr) && syscallErr.Err == syscall.ECONNRESET {
			return nil, io.EOF
		}
		return nil, err
	}
	return b, nil
}

// CloseWrite half-closes the stream when the underlying connection
// supports it, so the peer reads io.EOF.
func (c *StreamConn) CloseWrite() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Close closes the underlying stream.
func (c *StreamConn) Close() error {
	return c.rwc.Close()
}
