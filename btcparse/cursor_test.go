package btcparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorReads(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	c := NewCursor(buf)

	v16, err := c.ReadUint16LE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v16)

	v32, err := c.ReadUint32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x06050403), v32)

	assert.Equal(t, 2, c.Remaining())
	require.NoError(t, c.Skip(2))
	assert.Equal(t, 0, c.Remaining())

	_, err = c.ReadByte()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestCursorTruncation(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	_, err := c.ReadUint32LE()
	assert.ErrorIs(t, err, ErrTruncated)

	// failed read must not advance past the end
	b, err := c.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, b)
}

func TestVarInt(t *testing.T) {
	cases := []struct {
		encoded []byte
		want    uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0xfc}, 0xfc},
		{[]byte{0xfd, 0xfd, 0x00}, 0xfd},
		{[]byte{0xfd, 0xff, 0xff}, 0xffff},
		{[]byte{0xfe, 0x00, 0x00, 0x01, 0x00}, 0x10000},
		{[]byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, 0x100000000},
	}

	for _, tc := range cases {
		v, err := NewCursor(tc.encoded).ReadVarInt()
		require.NoError(t, err)
		assert.Equal(t, tc.want, v)

		// round-trip through the builder
		assert.Equal(t, tc.encoded, AppendVarInt(nil, tc.want))
	}
}

func TestVarIntRejectsNonCanonical(t *testing.T) {
	// 0xfc encoded with the 3-byte form
	_, err := NewCursor([]byte{0xfd, 0xfc, 0x00}).ReadVarInt()
	assert.ErrorIs(t, err, ErrVarIntInvalid)

	// truncated wide forms
	_, err = NewCursor([]byte{0xfd, 0x01}).ReadVarInt()
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = NewCursor([]byte{0xfe, 0x01, 0x02}).ReadVarInt()
	assert.ErrorIs(t, err, ErrTruncated)
}
