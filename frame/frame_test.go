package frame

import (
	"errors"
	"testing"

	"github.com/progrium/objmux-go/codec"
	"github.com/stretchr/testify/require"
)

type message struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		check   func(t *testing.T, p Payload)
	}{
		{
			name:    "provider",
			payload: 10,
			check: func(t *testing.T, p Payload) {
				var n int
				require.NoError(t, p.Decode(&n))
				require.Equal(t, 10, n)
			},
		},
		{
			name:    `{"nested":"name"}`,
			payload: "haay",
			check: func(t *testing.T, p Payload) {
				var s string
				require.NoError(t, p.Decode(&s))
				require.Equal(t, "haay", s)
			},
		},
		{
			name:    "a/b:c d",
			payload: message{Message: "wuurl", Count: 2},
			check: func(t *testing.T, p Payload) {
				var m message
				require.NoError(t, p.Decode(&m))
				require.Equal(t, message{Message: "wuurl", Count: 2}, m)
			},
		},
		{
			name:    "",
			payload: nil,
			check: func(t *testing.T, p Payload) {
				require.Nil(t, p.Value())
			},
		},
		{
			name:    "list",
			payload: []int{1, 2, 3},
			check: func(t *testing.T, p Payload) {
				var l []int
				require.NoError(t, p.Decode(&l))
				require.Equal(t, []int{1, 2, 3}, l)
			},
		},
	}
	for cname, c := range codec.Codecs {
		fc := NewCodec(c)
		for _, test := range tests {
			t.Run(cname+"/"+test.name, func(t *testing.T) {
				msg, err := fc.Encode(test.name, test.payload)
				require.NoError(t, err)

				f, err := fc.Decode(msg)
				require.NoError(t, err)
				require.Equal(t, test.name, f.Name)
				test.check(t, NewPayload(f.Data))
				require.NotEmpty(t, f.String())
			})
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	fc := NewCodec(nil)
	for _, msg := range []string{
		`not json`,
		`[1,2]`,
		`"just a string"`,
		`{"data":1}`,
		`{"name":5,"data":1}`,
		`{"name":"a"}`,
		`{"name":"a","data":1}junk`,
		`{"name":"a","data":1}{"name":"b","data":2}`,
	} {
		_, err := fc.Decode([]byte(msg))
		require.Error(t, err, msg)
		require.True(t, errors.Is(err, ErrMalformedFrame), msg)
	}

	f, err := fc.Decode([]byte(`{"name":"a","data":null}`))
	require.NoError(t, err)
	require.Equal(t, "a", f.Name)
	require.Nil(t, f.Data)
}

func TestDecodeTrailingBinary(t *testing.T) {
	for _, name := range []string{"cbor", "msgpack"} {
		fc := NewCodec(codec.Codecs[name])
		msg, err := fc.Encode("a", 1)
		require.NoError(t, err)

		_, err = fc.Decode(msg)
		require.NoError(t, err, name)
		_, err = fc.Decode(append(msg, 0x01))
		require.ErrorIs(t, err, ErrMalformedFrame, name)
	}
}

func TestDecodeJSONNumbers(t *testing.T) {
	fc := NewCodec(nil)
	f, err := fc.Decode([]byte(`{"name":"a","data":[9007199254740993,1.5,18446744073709551615]}`))
	require.NoError(t, err)
	data := f.Data.([]any)
	require.Equal(t, int64(9007199254740993), data[0])
	require.Equal(t, 1.5, data[1])

	// integers beyond int64 are forwarded exactly
	msg, err := fc.Encode("b", data[2])
	require.NoError(t, err)
	require.Contains(t, string(msg), `"data":18446744073709551615`)
}

func TestEncodePayloadPassthrough(t *testing.T) {
	fc := NewCodec(codec.CBORCodec{})
	msg, err := fc.Encode("a", NewPayload(map[string]any{"message": "haay"}))
	require.NoError(t, err)

	f, err := fc.Decode(msg)
	require.NoError(t, err)
	var m message
	require.NoError(t, NewPayload(f.Data).Decode(&m))
	require.Equal(t, "haay", m.Message)
}

func TestPayloadDecodeAny(t *testing.T) {
	p := NewPayload(map[string]any{"message": "haay"})
	var v any
	require.NoError(t, p.Decode(&v))
	require.Equal(t, map[string]any{"message": "haay"}, v)
	require.NoError(t, p.Decode(nil))
}
