// Package transport attaches multiplexers to physical connections: byte
// streams (io pipes, stdio, TCP, Unix sockets, QUIC streams) framed with a
// length prefix, WebSocket connections using one message per frame, and an
// in-memory pipe.
package transport

import (
	"fmt"
	"net"

	"github.com/progrium/objmux-go/mux"
)

// A Listener is similar to a net.Listener but returns connections attached
// to new multiplexers.
type Listener interface {
	// Close closes the listener.
	// Any blocked Accept operations will be unblocked and return errors.
	Close() error

	// Accept waits for and returns the next incoming multiplexer.
	Accept() (*mux.Multiplexer, error)

	// Addr returns the listener's network address if available.
	Addr() net.Addr
}

// A Dialer connects to addr and returns an attached multiplexer.
type Dialer func(addr string, opts ...mux.Option) (*mux.Multiplexer, error)

// Dialers is map of transport names to Dialers and includes all builtin
// transports. The "quic" dialer accepts the self-signed certificate served
// by the "quic" listener; use DialQUIC to verify the server.
var Dialers = map[string]Dialer{
	"tcp":  DialTCP,
	"unix": DialUnix,
	"ws":   DialWS,
	"quic": func(addr string, opts ...mux.Option) (*mux.Multiplexer, error) {
		return DialQUIC(addr, InsecureTLSConfig(), opts...)
	},
	"stdio": func(_ string, opts ...mux.Option) (*mux.Multiplexer, error) {
		return DialStdio(opts...)
	},
}

// Dial connects to a remote address using a registered transport. In the
// case of "stdio", addr can be left an empty string.
func Dial(transport, addr string, opts ...mux.Option) (*mux.Multiplexer, error) {
	d, ok := Dialers[transport]
	if !ok {
		return nil, fmt.Errorf("transport '%s' not in available in Dialers", transport)
	}
	return d(addr, opts...)
}

// A ListenFunc creates a Listener at addr.
type ListenFunc func(addr string, opts ...mux.Option) (Listener, error)

// Listeners is a map of transport names to ListenFuncs. The "quic"
// listener uses a freshly generated self-signed certificate.
var Listeners = map[string]ListenFunc{
	"tcp": func(addr string, opts ...mux.Option) (Listener, error) {
		return ListenTCP(addr, opts...)
	},
	"unix": func(addr string, opts ...mux.Option) (Listener, error) {
		return ListenUnix(addr, opts...)
	},
	"ws": ListenWS,
	"quic": func(addr string, opts ...mux.Option) (Listener, error) {
		tlsConf, err := GenerateTLSConfig()
		if err != nil {
			return nil, err
		}
		return ListenQUIC(addr, tlsConf, opts...)
	},
	"stdio": func(_ string, opts ...mux.Option) (Listener, error) {
		return ListenStdio(opts...)
	},
}

// Listen creates a Listener using a registered transport.
func Listen(transport, addr string, opts ...mux.Option) (Listener, error) {
	l, ok := Listeners[transport]
	if !ok {
		return nil, fmt.Errorf("transport '%s' not in available in Listeners", transport)
	}
	return l(addr, opts...)
}

// Attach returns a new multiplexer attached to conn.
func Attach(conn mux.Conn, opts ...mux.Option) (*mux.Multiplexer, error) {
	m := mux.New(opts...)
	if err := m.Attach(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}
