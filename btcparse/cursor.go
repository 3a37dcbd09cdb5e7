package btcparse

/*
A bounded cursor over caller-supplied bytes. Every read is bounds checked so
malformed or truncated input surfaces as an error instead of a panic. The
header parser, the output scanner and the OP_RETURN scanner all run on top
of this one type.
*/

import (
	"encoding/binary"
	"errors"
)

var (
	ErrTruncated     = errors.New("input truncated")
	ErrVarIntInvalid = errors.New("invalid varint encoding")
)

type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining reports how many unread bytes are left.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrTruncated
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *Cursor) Skip(n int) error {
	_, err := c.ReadBytes(n)
	return err
}

func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadUint16LE() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) ReadUint32LE() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadUint64LE() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadVarInt reads the bitcoin CompactSize integer encoding.
func (c *Cursor) ReadVarInt() (uint64, error) {
	tag, err := c.ReadByte()
	if err != nil {
		return 0, err
	}

	switch tag {
	case 0xfd:
		v, err := c.ReadUint16LE()
		if err != nil {
			return 0, err
		}
		if v < 0xfd {
			return 0, ErrVarIntInvalid
		}
		return uint64(v), nil
	case 0xfe:
		v, err := c.ReadUint32LE()
		if err != nil {
			return 0, err
		}
		if v <= 0xffff {
			return 0, ErrVarIntInvalid
		}
		return uint64(v), nil
	case 0xff:
		v, err := c.ReadUint64LE()
		if err != nil {
			return 0, err
		}
		if v <= 0xffffffff {
			return 0, ErrVarIntInvalid
		}
		return v, nil
	default:
		return uint64(tag), nil
	}
}
