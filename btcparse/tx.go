package btcparse

import (
	"errors"
)

const (
	opReturn    = 0x6a
	opPushData1 = 0x4c
	opPushData2 = 0x4d
)

var (
	ErrScriptTooLong = errors.New("script length exceeds limit")
	ErrCountTooLarge = errors.New("input/output count exceeds limit")
)

// Caps on attacker-controlled lengths so a hostile varint cannot force a
// huge allocation before the bounds check trips.
const (
	maxScriptLen = 10000
	maxTxItems   = 100000
)

// TxOutput is one scanned output of a raw transaction.
type TxOutput struct {
	Value    uint64 // satoshis
	PkScript []byte
	Index    uint32 // vout
}

// ScanOutputs walks a raw bitcoin transaction and returns its outputs. It
// skips the version, the optional segwit marker/flag and all inputs; witness
// data and locktime after the outputs are not consumed.
func ScanOutputs(rawTx []byte) ([]TxOutput, error) {
	c := NewCursor(rawTx)

	if err := c.Skip(4); err != nil { // version
		return nil, err
	}

	inCount, err := c.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if inCount == 0 {
		// segwit marker; the next byte is the flag, then the real count
		if err := c.Skip(1); err != nil {
			return nil, err
		}
		if inCount, err = c.ReadVarInt(); err != nil {
			return nil, err
		}
	}
	if inCount > maxTxItems {
		return nil, ErrCountTooLarge
	}

	for i := uint64(0); i < inCount; i++ {
		if err := c.Skip(36); err != nil { // outpoint: txid + vout
			return nil, err
		}
		scriptLen, err := c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		if scriptLen > maxScriptLen {
			return nil, ErrScriptTooLong
		}
		if err := c.Skip(int(scriptLen)); err != nil {
			return nil, err
		}
		if err := c.Skip(4); err != nil { // sequence
			return nil, err
		}
	}

	outCount, err := c.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if outCount > maxTxItems {
		return nil, ErrCountTooLarge
	}

	outputs := make([]TxOutput, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		value, err := c.ReadUint64LE()
		if err != nil {
			return nil, err
		}
		scriptLen, err := c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		if scriptLen > maxScriptLen {
			return nil, ErrScriptTooLong
		}
		script, err := c.ReadBytes(int(scriptLen))
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, TxOutput{
			Value:    value,
			PkScript: script,
			Index:    uint32(i),
		})
	}

	return outputs, nil
}

// ExtractOpReturn returns the pushed payload of an OP_RETURN script, or
// (nil, false) if the script is not a recognizable OP_RETURN push.
func ExtractOpReturn(pkScript []byte) ([]byte, bool) {
	if len(pkScript) < 2 || pkScript[0] != opReturn {
		return nil, false
	}

	c := NewCursor(pkScript[1:])
	op, err := c.ReadByte()
	if err != nil {
		return nil, false
	}

	var pushLen int
	switch {
	case op <= 75:
		pushLen = int(op)
	case op == opPushData1:
		n, err := c.ReadByte()
		if err != nil {
			return nil, false
		}
		pushLen = int(n)
	case op == opPushData2:
		n, err := c.ReadUint16LE()
		if err != nil {
			return nil, false
		}
		pushLen = int(n)
	default:
		return nil, false
	}

	payload, err := c.ReadBytes(pushLen)
	if err != nil {
		return nil, false
	}
	if c.Remaining() != 0 {
		return nil, false
	}
	return payload, true
}
