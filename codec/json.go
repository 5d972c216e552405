package codec

import (
	"encoding/json"
	"io"
	"strings"
)

// JSONCodec encodes values as JSON documents. Objects decode as
// map[string]any. Integral numbers decode as int64, like the binary codecs
// produce; integers outside the int64 range stay json.Number so they are
// forwarded exactly, and other numbers decode as float64.
type JSONCodec struct{}

func (c JSONCodec) Encoder(w io.Writer) Encoder {
	return json.NewEncoder(w)
}

func (c JSONCodec) Decoder(r io.Reader) Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &jsonDecoder{dec: dec}
}

type jsonDecoder struct {
	dec *json.Decoder
}

func (d *jsonDecoder) Decode(v any) error {
	if err := d.dec.Decode(v); err != nil {
		return err
	}
	if p, ok := v.(*any); ok {
		*p = normalizeNumbers(*p)
	}
	return nil
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if strings.ContainsAny(string(v), ".eE") {
			if f, err := v.Float64(); err == nil {
				return f
			}
			return v
		}
		if i, err := v.Int64(); err == nil {
			return i
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range v {
			v[i] = normalizeNumbers(e)
		}
	}
	return v
}
