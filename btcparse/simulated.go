package btcparse

/*
Builders for synthetic raw transactions and headers. Used by tests across
the repo to produce byte-exact wire input without a bitcoin node.
*/

import (
	"encoding/binary"
)

func appendUint32LE(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64LE(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func AppendVarInt(b []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(b, byte(v))
	case v <= 0xffff:
		b = append(b, 0xfd)
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(v))
		return append(b, tmp[:]...)
	case v <= 0xffffffff:
		b = append(b, 0xfe)
		return appendUint32LE(b, uint32(v))
	default:
		b = append(b, 0xff)
		return appendUint64LE(b, v)
	}
}

// BuildRawTx assembles a minimal raw transaction with the given number of
// dummy inputs and the exact outputs. With segwit=true the marker/flag pair
// is included (witness stack and locktime stay empty/zero).
func BuildRawTx(numInputs int, outputs []TxOutput, segwit bool) []byte {
	raw := appendUint32LE(nil, 2) // version

	if segwit {
		raw = append(raw, 0x00, 0x01)
	}

	raw = AppendVarInt(raw, uint64(numInputs))
	for i := 0; i < numInputs; i++ {
		var outpoint [36]byte
		outpoint[0] = byte(i + 1)
		raw = append(raw, outpoint[:]...)
		raw = AppendVarInt(raw, 0)            // empty scriptSig
		raw = appendUint32LE(raw, 0xffffffff) // sequence
	}

	raw = AppendVarInt(raw, uint64(len(outputs)))
	for _, out := range outputs {
		raw = appendUint64LE(raw, out.Value)
		raw = AppendVarInt(raw, uint64(len(out.PkScript)))
		raw = append(raw, out.PkScript...)
	}

	raw = appendUint32LE(raw, 0) // locktime
	return raw
}

// BuildOpReturnScript wraps payload in an OP_RETURN script, picking the
// push opcode by payload size.
func BuildOpReturnScript(payload []byte) []byte {
	script := []byte{opReturn}
	switch {
	case len(payload) <= 75:
		script = append(script, byte(len(payload)))
	case len(payload) <= 0xff:
		script = append(script, opPushData1, byte(len(payload)))
	default:
		script = append(script, opPushData2)
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(len(payload)))
		script = append(script, tmp[:]...)
	}
	return append(script, payload...)
}

// BuildRawHeader assembles an 80-byte header from its fields.
func BuildRawHeader(version uint32, prevHash, merkleRoot [32]byte, timestamp, bits, nonce uint32) []byte {
	raw := appendUint32LE(nil, version)
	raw = append(raw, prevHash[:]...)
	raw = append(raw, merkleRoot[:]...)
	raw = appendUint32LE(raw, timestamp)
	raw = appendUint32LE(raw, bits)
	raw = appendUint32LE(raw, nonce)
	return raw
}
