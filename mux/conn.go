package mux

// Conn is the physical connection a Multiplexer runs over. It must preserve
// message boundaries: every Send is delivered by exactly one Recv on the
// other side. Send is only ever called from one goroutine at a time, as is
// Recv. Byte streams are adapted with transport.NewStreamConn.
type Conn interface {
	// Send writes one message.
	Send(msg []byte) error

	// Recv blocks until the next message arrives. It returns io.EOF when
	// the remote side has finished sending.
	Recv() ([]byte, error)

	// Close tears down the connection, unblocking Send and Recv.
	Close() error
}

// halfCloser is implemented by connections that can signal the end of
// sending while still receiving.
type halfCloser interface {
	CloseWrite() error
}
