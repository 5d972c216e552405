package transport

import (
	"io"
	"net"
	"os"
	"sync"

	"github.com/progrium/objmux-go/mux"
	"go.uber.org/multierr"
)

// DialIO attaches a multiplexer to a WriteCloser and ReadCloser pair.
func DialIO(out io.WriteCloser, in io.ReadCloser, opts ...mux.Option) (*mux.Multiplexer, error) {
	return Attach(NewStreamConn(&ioduplex{out, in}), opts...)
}

// DialStdio attaches a multiplexer to Stdout and Stdin.
func DialStdio(opts ...mux.Option) (*mux.Multiplexer, error) {
	return DialIO(os.Stdout, os.Stdin, opts...)
}

type ioduplex struct {
	io.WriteCloser
	io.ReadCloser
}

// CloseWrite closes only the writing side so the peer reads io.EOF.
func (d *ioduplex) CloseWrite() error {
	return d.WriteCloser.Close()
}

func (d *ioduplex) Close() error {
	return multierr.Append(d.WriteCloser.Close(), d.ReadCloser.Close())
}

// ioListener wraps a single ReadWriteCloser to use as a listener.
type ioListener struct {
	io.ReadWriteCloser
	opts []mux.Option
	once sync.Once
}

// Accept returns the wrapped stream as a multiplexer the first time and
// io.EOF afterwards.
func (l *ioListener) Accept() (*mux.Multiplexer, error) {
	first := false
	l.once.Do(func() { first = true })
	if !first {
		return nil, io.EOF
	}
	return Attach(NewStreamConn(l.ReadWriteCloser), l.opts...)
}

func (l *ioListener) Addr() net.Addr {
	return nil
}

// ListenIO returns a Listener that gives one multiplexer based on separate
// WriteCloser and ReadCloser.
func ListenIO(out io.WriteCloser, in io.ReadCloser, opts ...mux.Option) (Listener, error) {
	return &ioListener{
		ReadWriteCloser: &ioduplex{out, in},
		opts:            opts,
	}, nil
}

// ListenStdio is a convenience for calling ListenIO with Stdout and Stdin.
func ListenStdio(opts ...mux.Option) (Listener, error) {
	return ListenIO(os.Stdout, os.Stdin, opts...)
}
