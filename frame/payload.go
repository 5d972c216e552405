package frame

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Payload is a decoded frame payload in the generic form a codec produces
// (maps, slices, strings, numbers, booleans and nil).
type Payload struct {
	v any
}

// NewPayload wraps a generic value.
func NewPayload(v any) Payload {
	return Payload{v: v}
}

// Value returns the payload as decoded.
func (p Payload) Value() any {
	return p.v
}

// Decode stores the payload in the value pointed to by v, converting numeric
// widths and decoding maps into structs using their json tags.
func (p Payload) Decode(v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && p.v != nil {
		if pv := reflect.ValueOf(p.v); pv.Type().AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(pv)
			return nil
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(p.v)
}
