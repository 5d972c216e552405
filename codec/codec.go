// Package codec provides the value encodings used to put frames on the wire
// and the length-prefix framing used by byte-oriented transports.
package codec

import (
	"fmt"
	"io"
	"sort"
)

type Encoder interface {
	// Encode writes an encoding of v to its Writer.
	Encode(v any) error
}

type Decoder interface {
	// Decode reads the next encoded value from its Reader and stores it in the value pointed to by v.
	Decode(v any) error
}

// Codec returns an Encoder or Decoder given a Writer or Reader.
type Codec interface {
	Encoder(w io.Writer) Encoder
	Decoder(r io.Reader) Decoder
}

// Codecs maps codec names to the builtin codecs.
var Codecs = map[string]Codec{
	"json":    JSONCodec{},
	"cbor":    CBORCodec{},
	"msgpack": MsgpackCodec{},
}

// ByName returns the registered codec with the given name.
func ByName(name string) (Codec, error) {
	c, ok := Codecs[name]
	if !ok {
		names := make([]string, 0, len(Codecs))
		for n := range Codecs {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("codec: unknown codec %q (available: %v)", name, names)
	}
	return c, nil
}
