package transport

import (
	"io"
	"net"
	"sync"

	"github.com/progrium/objmux-go/mux"
)

// Pipe returns the two ends of an in-memory, unbuffered message connection.
func Pipe() (mux.Conn, mux.Conn) {
	ab := &pipeDir{msgs: make(chan []byte), eof: make(chan struct{})}
	ba := &pipeDir{msgs: make(chan []byte), eof: make(chan struct{})}
	a := &pipeConn{r: ba, w: ab, closed: make(chan struct{})}
	b := &pipeConn{r: ab, w: ba, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

type pipeDir struct {
	msgs    chan []byte
	eof     chan struct{}
	eofOnce sync.Once
}

type pipeConn struct {
	r, w      *pipeDir
	peer      *pipeConn
	closed    chan struct{}
	closeOnce sync.Once
}

func (p *pipeConn) Send(msg []byte) error {
	select {
	case <-p.w.eof:
		return io.ErrClosedPipe
	case <-p.closed:
		return net.ErrClosed
	default:
	}
	select {
	case p.w.msgs <- msg:
		return nil
	case <-p.closed:
		return net.ErrClosed
	case <-p.peer.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeConn) Recv() ([]byte, error) {
	select {
	case msg := <-p.r.msgs:
		return msg, nil
	case <-p.r.eof:
		return nil, io.EOF
	case <-p.closed:
		return nil, net.ErrClosed
	case <-p.peer.closed:
		return nil, io.EOF
	}
}

func (p *pipeConn) CloseWrite() error {
	p.w.eofOnce.Do(func() {
		close(p.w.eof)
	})
	return nil
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	return nil
}
