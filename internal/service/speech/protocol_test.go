package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFrameRoundTrip(t *testing.T) {
	original := newConfigFrame([]byte("payload"))

	decoded, err := unmarshalFrame(original.marshal())
	require.NoError(t, err)

	assert.Equal(t, FullClientRequest, decoded.Type)
	assert.Equal(t, JSONSerialization, decoded.Serialization)
	assert.Equal(t, GzipCompression, decoded.Compression)
	assert.Equal(t, []byte("payload"), decoded.Payload)
	assert.False(t, decoded.isLast())
}

func TestAudioFrameSequence(t *testing.T) {
	mid, err := unmarshalFrame(newAudioFrame([]byte("a"), 2, false).marshal())
	require.NoError(t, err)
	assert.Equal(t, int32(2), mid.Sequence)
	assert.False(t, mid.isLast())

	last, err := unmarshalFrame(newAudioFrame([]byte("b"), 3, true).marshal())
	require.NoError(t, err)
	assert.Equal(t, int32(-3), last.Sequence)
	assert.True(t, last.isLast())
}

func TestHeaderLayout(t *testing.T) {
	data := newAudioFrame(nil, 5, true).marshal()

	assert.Equal(t, byte(0x11), data[0])
	assert.Equal(t, byte(0x23), data[1])
	assert.Equal(t, byte(0x01), data[2])
	assert.Len(t, data, 12)
}

func TestErrorFrameCarriesCode(t *testing.T) {
	f := frame{Type: ErrorMessage, Payload: []byte("bad audio"), ErrorCode: 45000001}

	decoded, err := unmarshalFrame(f.marshal())
	require.NoError(t, err)
	assert.Equal(t, uint32(45000001), decoded.ErrorCode)
	assert.Equal(t, "bad audio", string(decoded.Payload))
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	_, err := unmarshalFrame([]byte{0x11})
	assert.Error(t, err)

	_, err = unmarshalFrame([]byte{0x21, 0x90, 0x11, 0x00, 0, 0, 0, 0})
	assert.Error(t, err, "wrong protocol version")

	truncated := newConfigFrame([]byte("payload")).marshal()
	_, err = unmarshalFrame(truncated[:len(truncated)-2])
	assert.Error(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	packed, err := compress(data, GzipCompression)
	require.NoError(t, err)
	unpacked, err := decompress(packed, GzipCompression)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)

	same, err := compress(data, NoCompression)
	require.NoError(t, err)
	assert.Equal(t, data, same)

	_, err = compress(data, CompressionMethod(0b0111))
	assert.Error(t, err)
}
