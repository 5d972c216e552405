package codec

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec encodes values with MessagePack. Struct fields are named by
// their json tags so the same types work with every builtin codec.
type MsgpackCodec struct{}

func (c MsgpackCodec) Encoder(w io.Writer) Encoder {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc
}

func (c MsgpackCodec) Decoder(r io.Reader) Decoder {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	return dec
}
