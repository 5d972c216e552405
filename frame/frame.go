// Package frame implements the envelope that carries one channel's payload
// across a shared connection. A frame is a map with exactly two keys, "name"
// and "data", encoded with any codec.Codec.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/progrium/objmux-go/codec"
)

// ErrMalformedFrame is returned by Decode for wire messages that are not a
// name/data envelope. It only concerns the one message being decoded.
var ErrMalformedFrame = errors.New("objmux: malformed frame")

// Frame is the unit of transmission on a multiplexed connection.
type Frame struct {
	Name string `json:"name" cbor:"name" msgpack:"name"`
	Data any    `json:"data" cbor:"data" msgpack:"data"`
}

func (f Frame) String() string {
	return fmt.Sprintf("{Frame Name:%q Data:%T}", f.Name, f.Data)
}

// Codec translates frames to and from wire messages. It keeps no state and
// is safe for concurrent use.
type Codec struct {
	codec.Codec
}

// NewCodec returns a frame codec using c for the envelope and payload.
// A nil c selects JSON.
func NewCodec(c codec.Codec) *Codec {
	if c == nil {
		c = codec.JSONCodec{}
	}
	return &Codec{Codec: c}
}

// Encode wraps payload in an envelope addressed to name.
func (c *Codec) Encode(name string, payload any) ([]byte, error) {
	if p, ok := payload.(Payload); ok {
		payload = p.Value()
	}
	var buf bytes.Buffer
	if err := c.Codec.Encoder(&buf).Encode(Frame{Name: name, Data: payload}); err != nil {
		return nil, fmt.Errorf("objmux: encode frame %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Decode unwraps a wire message. The payload is left in the generic form
// produced by the codec; use Payload to convert it to a concrete type.
func (c *Codec) Decode(msg []byte) (Frame, error) {
	dec := c.Codec.Decoder(bytes.NewReader(msg))
	var v any
	if err := dec.Decode(&v); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	// a message holds exactly one envelope
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return Frame{}, fmt.Errorf("%w: trailing data after envelope", ErrMalformedFrame)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Frame{}, fmt.Errorf("%w: envelope is %T, not a map", ErrMalformedFrame, v)
	}
	name, ok := m["name"].(string)
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing name", ErrMalformedFrame)
	}
	data, ok := m["data"]
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing data for %q", ErrMalformedFrame, name)
	}
	return Frame{Name: name, Data: data}, nil
}
