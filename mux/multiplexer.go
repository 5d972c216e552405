// Package mux multiplexes named object channels over one message-oriented
// connection. Each frame on the wire carries a channel name and a payload;
// frames for one name keep their order while frames for different names may
// interleave freely.
package mux

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/progrium/objmux-go/frame"
	"go.uber.org/zap"
)

// Multiplexer owns the channel registry for one physical connection. All
// outbound frames go through a single queue drained by one writer
// goroutine, and one reader goroutine routes inbound frames by name.
type Multiplexer struct {
	codec     *frame.Codec
	log       *zap.Logger
	queueSize int

	// state mirrors st for lock-free reads. It is only written with mu held.
	state atomic.Int32

	// mu guards everything below and is the lock for cond, which is
	// signalled whenever the queue or the state changes.
	mu   sync.Mutex
	cond *sync.Cond

	st          State
	chans       map[string]*Channel
	ignored     map[string]struct{}
	queue       [][]byte
	conn        Conn
	closedWrite bool
	finished    []func()
	err         error

	done chan struct{}
}

// New returns a multiplexer that is not yet attached to a connection.
// Channels may be created and written to before Attach; their frames wait
// in the outbound queue.
func New(opts ...Option) *Multiplexer {
	o := &options{
		logger:    zap.NewNop(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	m := &Multiplexer{
		codec:     frame.NewCodec(o.codec),
		log:       o.logger,
		queueSize: o.queueSize,
		chans:     make(map[string]*Channel),
		ignored:   make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Attach binds the multiplexer to conn and starts its reader and writer.
// A multiplexer can be attached once. Errors from conn tear the
// multiplexer down as if Destroy had been called.
func (m *Multiplexer) Attach(conn Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == Destroyed {
		return ErrAlreadyDestroyed
	}
	if m.conn != nil {
		return ErrAlreadyAttached
	}
	m.conn = conn
	go m.readLoop(conn)
	go m.writeLoop(conn)
	return nil
}

// CreateStream registers a channel for name.
func (m *Multiplexer) CreateStream(name string) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.st {
	case Destroyed:
		return nil, ErrAlreadyDestroyed
	case Ending, Ended:
		return nil, ErrAlreadyEnded
	}
	if _, ok := m.chans[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateChannel, name)
	}
	if _, ok := m.ignored[name]; ok {
		return nil, fmt.Errorf("%w: %q is ignored", ErrDuplicateChannel, name)
	}
	ch := newChannel(name, m)
	m.chans[name] = ch
	m.log.Debug("channel created", zap.String("channel", name))
	return ch, nil
}

// IgnoreStream drops every frame addressed to name from now on, without
// creating a channel for it. The name can no longer be used with
// CreateStream.
func (m *Multiplexer) IgnoreStream(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[name] = struct{}{}
}

// Streams returns the names of the live channels, sorted.
func (m *Multiplexer) Streams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.chans))
	for name := range m.chans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// End stops accepting new channels and writes, flushes the frames already
// queued, then half-closes the connection if it supports that. Channels
// keep receiving. onFinished, if not nil, runs once everything queued has
// been written; it never runs if the multiplexer is destroyed first.
func (m *Multiplexer) End(onFinished func()) {
	m.mu.Lock()
	switch m.st {
	case Destroyed:
		m.mu.Unlock()
		return
	case Ended:
		m.mu.Unlock()
		if onFinished != nil {
			onFinished()
		}
		return
	case Active:
		m.setState(Ending)
		m.log.Debug("multiplexer ending", zap.Int("queued", len(m.queue)))
	}
	if onFinished != nil {
		m.finished = append(m.finished, onFinished)
	}
	m.cond.Broadcast()

	var settled func()
	if m.conn == nil && len(m.queue) == 0 {
		settled = m.settleLocked()
	}
	m.mu.Unlock()
	if settled != nil {
		settled()
	}
}

// Destroy tears the multiplexer down immediately: every channel is
// destroyed, queued frames are discarded and the connection is closed.
func (m *Multiplexer) Destroy() {
	m.DestroyWithError(nil)
}

// DestroyWithError is like Destroy but records cause as the reason, which
// channels report wrapped in ErrDisconnected and Wait returns.
func (m *Multiplexer) DestroyWithError(cause error) {
	m.teardown(cause, false)
}

// teardown destroys the multiplexer. With drain set, payloads already
// delivered to channels stay readable; this is used when the peer ends the
// connection cleanly.
func (m *Multiplexer) teardown(cause error, drain bool) {
	m.mu.Lock()
	if m.st == Destroyed {
		m.mu.Unlock()
		return
	}
	m.setState(Destroyed)
	m.err = cause
	chans := m.chans
	m.chans = make(map[string]*Channel)
	dropped := len(m.queue)
	m.queue = nil
	m.finished = nil
	conn := m.conn

	// channels are closed before the lock is released so no payload can
	// be observed between the state change and their teardown
	chErr := &disconnectError{cause: cause}
	for _, ch := range chans {
		ch.close(chErr, drain)
	}
	close(m.done)
	m.cond.Broadcast()
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debug("close connection", zap.Error(err))
		}
	}
	m.log.Debug("multiplexer destroyed",
		zap.Int("channels", len(chans)),
		zap.Int("dropped", dropped),
		zap.Bool("drain", drain),
		zap.NamedError("cause", cause))
}

// State returns the current lifecycle state.
func (m *Multiplexer) State() State {
	return State(m.state.Load())
}

// Done is closed when the multiplexer is destroyed.
func (m *Multiplexer) Done() <-chan struct{} {
	return m.done
}

// Err returns the cause the multiplexer was destroyed with, if any.
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Wait blocks until the multiplexer is destroyed and returns the cause.
func (m *Multiplexer) Wait() error {
	<-m.done
	return m.Err()
}

func (m *Multiplexer) setState(s State) {
	m.st = s
	m.state.Store(int32(s))
}

// send encodes payload for ch and appends it to the outbound queue,
// waiting for space if the queue is full.
func (m *Multiplexer) send(ctx context.Context, ch *Channel, payload any) error {
	msg, err := m.codec.Encode(ch.name, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var stop func() bool
	defer func() {
		if stop != nil {
			stop()
		}
	}()
	for {
		if m.st != Active || m.chans[ch.name] != ch || !ch.writable() {
			return ErrChannelClosed
		}
		if len(m.queue) < m.queueSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if stop == nil && ctx.Done() != nil {
			stop = context.AfterFunc(ctx, func() {
				m.mu.Lock()
				m.cond.Broadcast()
				m.mu.Unlock()
			})
		}
		m.cond.Wait()
	}
	m.queue = append(m.queue, msg)
	m.cond.Broadcast()
	return nil
}

// release removes ch from the registry and destroys it.
func (m *Multiplexer) release(ch *Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chans[ch.name] == ch {
		delete(m.chans, ch.name)
		m.log.Debug("channel destroyed", zap.String("channel", ch.name))
	}
	ch.close(ErrChannelClosed, false)
	m.cond.Broadcast()
}

// settleLocked finishes a pending End once nothing is left to write. It
// returns the work to do after mu is released.
func (m *Multiplexer) settleLocked() func() {
	if m.st == Ending {
		m.setState(Ended)
		m.log.Debug("multiplexer ended")
	}
	if m.st != Ended {
		return func() {}
	}
	finished := m.finished
	m.finished = nil
	var hc halfCloser
	if m.conn != nil && !m.closedWrite {
		m.closedWrite = true
		hc, _ = m.conn.(halfCloser)
	}
	return func() {
		if hc != nil {
			if err := hc.CloseWrite(); err != nil {
				m.log.Debug("close write", zap.Error(err))
			}
		}
		for _, fn := range finished {
			fn()
		}
	}
}

// writeLoop drains the outbound queue onto conn, one whole frame per Send.
func (m *Multiplexer) writeLoop(conn Conn) {
	for {
		m.mu.Lock()
		for m.st == Active && len(m.queue) == 0 {
			m.cond.Wait()
		}
		if m.st == Destroyed {
			m.mu.Unlock()
			return
		}
		if len(m.queue) == 0 {
			settled := m.settleLocked()
			m.mu.Unlock()
			settled()
			return
		}
		msg := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.cond.Broadcast()
		m.mu.Unlock()

		if err := conn.Send(msg); err != nil {
			m.log.Debug("send failed", zap.Error(err))
			m.DestroyWithError(fmt.Errorf("objmux: send: %w", err))
			return
		}
	}
}

// readLoop routes inbound messages until conn fails or is closed.
func (m *Multiplexer) readLoop(conn Conn) {
	for {
		msg, err := conn.Recv()
		if err == io.EOF {
			m.teardown(err, true)
			return
		}
		if err != nil {
			m.DestroyWithError(err)
			return
		}
		m.route(msg)
	}
}

// route delivers one inbound message. Malformed messages and messages for
// ignored or unknown names are dropped; they never stop the loop.
func (m *Multiplexer) route(msg []byte) {
	f, err := m.codec.Decode(msg)
	if err != nil {
		m.log.Warn("dropping malformed frame", zap.Error(err), zap.Int("size", len(msg)))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == Destroyed {
		return
	}
	if _, ok := m.ignored[f.Name]; ok {
		return
	}
	ch, ok := m.chans[f.Name]
	if !ok {
		m.log.Debug("dropping frame for unknown channel", zap.String("channel", f.Name))
		return
	}
	ch.deliver(frame.NewPayload(f.Data))
}
