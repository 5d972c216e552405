package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type testData struct {
	Map map[string]bool `json:"map"`
	Arr []int           `json:"arr"`
}

func TestCodecs(t *testing.T) {
	for name, c := range Codecs {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, c.Encoder(&buf).Encode(testData{
				Map: map[string]bool{"true": true, "false": false},
				Arr: []int{1, 2, 3},
			}))

			var data testData
			require.NoError(t, c.Decoder(&buf).Decode(&data))
			require.True(t, data.Map["true"])
			require.Equal(t, 3, data.Arr[2])
		})
	}
}

func TestUntypedMapsHaveStringKeys(t *testing.T) {
	for name, c := range Codecs {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, c.Encoder(&buf).Encode(map[string]any{"name": "a"}))

			var v any
			require.NoError(t, c.Decoder(&buf).Decode(&v))
			m, ok := v.(map[string]any)
			require.True(t, ok, "got %T", v)
			require.Equal(t, "a", m["name"])
		})
	}
}

func TestByName(t *testing.T) {
	c, err := ByName("cbor")
	require.NoError(t, err)
	require.IsType(t, CBORCodec{}, c)

	_, err = ByName("xml")
	require.Error(t, err)
}

func TestFrameReadWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, nil))
	require.Equal(t, 4+5+4, buf.Len())

	b, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	b, err = ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, b)

	_, err = ReadFrame(&buf)
	require.Equal(t, io.EOF, err)
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	truncated := bytes.NewReader(buf.Bytes()[:6])

	_, err := ReadFrame(truncated)
	require.Equal(t, io.ErrUnexpectedEOF, err)
}
