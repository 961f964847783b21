package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeName_ARecordQuestion(t *testing.T) {
	c := NewCompress()
	buf, err := c.EncodeName(nil, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		0x03, 'c', 'o', 'm',
		0x00,
	}, buf)
}

func TestEncodeName_Compression(t *testing.T) {
	c := NewCompress()

	first, err := c.EncodeName(nil, "example.com")
	require.NoError(t, err)
	require.Len(t, first, 13)

	second, err := c.EncodeName(first, "foo.example.com")
	require.NoError(t, err)

	// second is first's 13 bytes plus the new encoding of "foo.example.com".
	suffix := second[len(first):]
	assert.Equal(t, []byte{0x03, 'f', 'o', 'o', 0xC0, 0x00}, suffix)
	assert.Less(t, len(suffix), len(first))
}

func TestDecodeName_Compressed(t *testing.T) {
	msg := []byte{
		0x03, 'c', 'o', 'm', 0x00, // offset 0: "com"
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0xC0, 0x00, // offset 5: "example" + pointer to offset 0
	}
	name, next, err := DecodeName(msg, 5)
	require.NoError(t, err)
	assert.Equal(t, "example.com", name)
	assert.Equal(t, len(msg), next)
}

func TestDecodeName_CircularPointer(t *testing.T) {
	msg := []byte{0xC0, 0x00}
	_, _, err := DecodeName(msg, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircularCompressionPointer))
}

func TestDecodeName_InvalidLabelLength(t *testing.T) {
	msg := []byte{64} // top bits 00, length 64 >= 64 is invalid
	_, _, err := DecodeName(msg, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLabelLength))
}

func TestDecodeName_InsufficientData(t *testing.T) {
	msg := []byte{5, 'h', 'e'} // claims 5 bytes, only 2 follow
	_, _, err := DecodeName(msg, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestDecodeName_Root(t *testing.T) {
	msg := []byte{0x00}
	name, next, err := DecodeName(msg, 0)
	require.NoError(t, err)
	assert.Equal(t, "", name)
	assert.Equal(t, 1, next)
}

func TestNameRoundTrip(t *testing.T) {
	names := []string{"", "local", "example.com", "_http._tcp.local", "a.b.c.d.e.f"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			c := NewCompress()
			buf, err := c.EncodeName(nil, name)
			require.NoError(t, err)

			decoded, next, err := DecodeName(buf, 0)
			require.NoError(t, err)
			assert.Equal(t, name, decoded)
			assert.Equal(t, len(buf), next)
		})
	}
}

func TestEncodeName_LabelTooLong(t *testing.T) {
	c := NewCompress()
	label := make([]byte, 64)
	for i := range label {
		label[i] = 'a'
	}
	_, err := c.EncodeName(nil, string(label))
	require.Error(t, err)
}
