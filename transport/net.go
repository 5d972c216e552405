package transport

import (
	"net"

	"github.com/pkg/errors"
	"github.com/progrium/objmux-go/mux"
)

func dialNet(proto, addr string, opts []mux.Option) (*mux.Multiplexer, error) {
	conn, err := net.Dial(proto, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", proto)
	}
	return Attach(NewStreamConn(conn), opts...)
}

// DialTCP connects to a TCP address.
func DialTCP(addr string, opts ...mux.Option) (*mux.Multiplexer, error) {
	return dialNet("tcp", addr, opts)
}

// DialUnix connects to a Unix domain socket.
func DialUnix(addr string, opts ...mux.Option) (*mux.Multiplexer, error) {
	return dialNet("unix", addr, opts)
}

// NetListener wraps a net.Listener to return attached multiplexers.
type NetListener struct {
	net.Listener
	opts []mux.Option
}

// Accept waits for and returns the next connected multiplexer.
func (l *NetListener) Accept() (*mux.Multiplexer, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return Attach(NewStreamConn(conn), l.opts...)
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *NetListener) Close() error {
	return l.Listener.Close()
}

func listenNet(proto, addr string, opts []mux.Option) (*NetListener, error) {
	l, err := net.Listen(proto, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", proto)
	}
	return &NetListener{Listener: l, opts: opts}, nil
}

// ListenTCP creates a TCP listener at the given address.
func ListenTCP(addr string, opts ...mux.Option) (*NetListener, error) {
	return listenNet("tcp", addr, opts)
}

// ListenUnix creates a Unix domain socket listener at the given path.
func ListenUnix(path string, opts ...mux.Option) (*NetListener, error) {
	return listenNet("unix", path, opts)
}
