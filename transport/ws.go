package transport

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/progrium/objmux-go/mux"
	"golang.org/x/net/websocket"
)

// WSConn carries one frame per WebSocket message. Messages that are valid
// UTF-8 (any JSON frame) go out as text so browser peers can read them as
// strings; anything else goes out as binary.
type WSConn struct {
	ws *websocket.Conn
}

// NewWSConn wraps an open WebSocket connection.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

func (c *WSConn) Send(msg []byte) error {
	if utf8.Valid(msg) {
		return websocket.Message.Send(c.ws, string(msg))
	}
	return websocket.Message.Send(c.ws, msg)
}

func (c *WSConn) Recv() ([]byte, error) {
	var msg []byte
	if err := websocket.Message.Receive(c.ws, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *WSConn) Close() error {
	return c.ws.Close()
}

// DialWS connects to a WebSocket endpoint. The address must be a host and
// port. Opening a WebSocket connection at a particular path is not
// supported.
func DialWS(addr string, opts ...mux.Option) (*mux.Multiplexer, error) {
	ws, err := websocket.Dial(fmt.Sprintf("ws://%s/", addr), "", fmt.Sprintf("http://%s/", addr))
	if err != nil {
		return nil, errors.Wrap(err, "dial ws")
	}
	return Attach(NewWSConn(ws), opts...)
}

// wsListener wraps a net.Listener and WebSocket server to return attached
// multiplexers.
type wsListener struct {
	net.Listener
	opts     []mux.Option
	accepted chan *mux.Multiplexer
	closer   chan struct{}
	once     sync.Once
}

// Accept waits for and returns the next connected multiplexer.
func (l *wsListener) Accept() (*mux.Multiplexer, error) {
	select {
	case m := <-l.accepted:
		return m, nil
	case <-l.closer:
		return nil, io.EOF
	}
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *wsListener) Close() error {
	l.once.Do(func() {
		close(l.closer)
	})
	return l.Listener.Close()
}

// Handler returns the WebSocket handler that feeds this listener. The
// handler holds the connection open until its multiplexer is destroyed.
func (l *wsListener) Handler() http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		m, err := Attach(NewWSConn(ws), l.opts...)
		if err != nil {
			return
		}
		select {
		case l.accepted <- m:
		case <-l.closer:
			m.Destroy()
			return
		}
		m.Wait()
	})
}

// HandleWS returns an http.Handler that attaches each WebSocket connection
// to a new multiplexer and passes it to fn. The connection is held open until
// the multiplexer is destroyed.
func HandleWS(fn func(*mux.Multiplexer), opts ...mux.Option) http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		m, err := Attach(NewWSConn(ws), opts...)
		if err != nil {
			return
		}
		fn(m)
		m.Wait()
	})
}

// ListenWS takes a TCP address and returns a Listener for a HTTP+WebSocket
// server listening on the given address.
func ListenWS(addr string, opts ...mux.Option) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen ws")
	}
	wsl := &wsListener{
		Listener: l,
		opts:     opts,
		accepted: make(chan *mux.Multiplexer),
		closer:   make(chan struct{}),
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: wsl.Handler(),
	}
	go srv.Serve(l)
	return wsl, nil
}
