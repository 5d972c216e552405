package mux

import (
	"context"
	"sync"

	"github.com/progrium/objmux-go/frame"
)

type channelState uint8

const (
	channelActive channelState = iota
	channelEnded
	channelDestroyed
)

// sink is the part of the Multiplexer a channel may use. Channels never
// own the multiplexer; they only hand it frames and ask to be released.
type sink interface {
	send(ctx context.Context, ch *Channel, payload any) error
	release(ch *Channel)
}

// Channel is a named duplex endpoint multiplexed over a shared connection.
// Payloads written to a channel are delivered, in order, to the channel of
// the same name on the remote multiplexer.
type Channel struct {
	// R/O after creation
	name string
	mux  sink

	// mu protects everything below and is the lock for cond. When both are
	// held, the multiplexer lock is always taken first.
	mu   sync.Mutex
	cond *sync.Cond

	state   channelState
	err     error
	pending []frame.Payload

	ended chan struct{}
	done  chan struct{}
}

func newChannel(name string, mux sink) *Channel {
	ch := &Channel{
		name:  name,
		mux:   mux,
		ended: make(chan struct{}),
		done:  make(chan struct{}),
	}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// Name returns the name the channel is registered under.
func (ch *Channel) Name() string {
	return ch.name
}

// Write sends payload to the remote channel of the same name. It blocks
// while the outbound queue is full and returns ErrChannelClosed if the
// channel or its multiplexer can no longer send.
func (ch *Channel) Write(payload any) error {
	return ch.WriteContext(context.Background(), payload)
}

// WriteContext is like Write but gives up waiting for queue space when ctx
// is done.
func (ch *Channel) WriteContext(ctx context.Context, payload any) error {
	if !ch.writable() {
		return ErrChannelClosed
	}
	return ch.mux.send(ctx, ch, payload)
}

func (ch *Channel) writable() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state == channelActive
}

// Next blocks until the next payload arrives. It returns ErrChannelClosed
// after Destroy, and an error matching ErrDisconnected once the
// multiplexer was torn down. Payloads still pending at that point are
// discarded, unless the peer ended the connection cleanly, in which case
// they are returned first.
func (ch *Channel) Next() (frame.Payload, error) {
	return ch.NextContext(context.Background())
}

// NextContext is like Next but returns ctx.Err() when ctx is done first.
func (ch *Channel) NextContext(ctx context.Context) (frame.Payload, error) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			ch.mu.Lock()
			ch.cond.Broadcast()
			ch.mu.Unlock()
		})
		defer stop()
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for {
		if len(ch.pending) > 0 {
			p := ch.pending[0]
			ch.pending[0] = frame.Payload{}
			ch.pending = ch.pending[1:]
			return p, nil
		}
		if ch.state == channelDestroyed {
			return frame.Payload{}, ch.err
		}
		if err := ctx.Err(); err != nil {
			return frame.Payload{}, err
		}
		ch.cond.Wait()
	}
}

// Receive reads the next payload into the value pointed to by v.
func (ch *Channel) Receive(v any) error {
	p, err := ch.Next()
	if err != nil {
		return err
	}
	return p.Decode(v)
}

// End signals that this side is done writing. Only the local side is
// affected: no message is sent, so the remote channel is not notified.
// Receiving continues until the channel is destroyed.
func (ch *Channel) End() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	switch ch.state {
	case channelDestroyed:
		return ErrChannelClosed
	case channelActive:
		ch.state = channelEnded
		close(ch.ended)
	}
	return nil
}

// Destroy tears the channel down immediately and releases its name on the
// multiplexer. Pending and later inbound payloads are dropped.
func (ch *Channel) Destroy() {
	ch.mux.release(ch)
}

// Ended is closed once the channel can no longer write.
func (ch *Channel) Ended() <-chan struct{} {
	return ch.ended
}

// Done is closed once the channel is destroyed, locally or because its
// multiplexer went away.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

// Err returns why the channel was destroyed, or nil while it is live.
func (ch *Channel) Err() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.err
}

// deliver queues an inbound payload. Payloads for a destroyed channel are
// dropped without error.
func (ch *Channel) deliver(p frame.Payload) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state == channelDestroyed {
		return
	}
	ch.pending = append(ch.pending, p)
	ch.cond.Broadcast()
}

func (ch *Channel) close(err error, drain bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state == channelDestroyed {
		return
	}
	if ch.state == channelActive {
		close(ch.ended)
	}
	ch.state = channelDestroyed
	ch.err = err
	if !drain {
		ch.pending = nil
	}
	close(ch.done)
	ch.cond.Broadcast()
}
