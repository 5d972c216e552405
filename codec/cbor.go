package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// decMode makes untyped CBOR maps decode with string keys so they look like
// the maps produced by the JSON and MessagePack codecs.
var decMode, _ = cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
}.DecMode()

// CBORCodec provides a codec API for a CBOR encoder and decoder.
type CBORCodec struct{}

// Encoder returns a CBOR encoder
func (c CBORCodec) Encoder(w io.Writer) Encoder {
	return cbor.NewEncoder(w)
}

// Decoder returns a CBOR decoder
func (c CBORCodec) Decoder(r io.Reader) Decoder {
	return decMode.NewDecoder(r)
}
