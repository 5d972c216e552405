package mux

import (
	"github.com/progrium/objmux-go/codec"
	"go.uber.org/zap"
)

// DefaultQueueSize is the number of encoded frames that may wait for the
// connection before Write blocks.
const DefaultQueueSize = 64

type options struct {
	codec     codec.Codec
	logger    *zap.Logger
	queueSize int
}

// Option configures a Multiplexer.
type Option func(*options)

// WithCodec selects the codec used for frames. The default is JSON, which
// is what browser-side peers speak.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueueSize bounds the outbound queue shared by all channels.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}
