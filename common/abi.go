package common

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// EncodePacked mimics solidity abi.encodePacked for the types the bridge
// commits to. Unknown types are silently skipped, so callers must only pass
// the variants below.
func EncodePacked(values ...interface{}) []byte {
	var res [][]byte
	for _, value := range values {
		switch v := value.(type) {
		case string:
			res = append(res, []byte(v))
		case []byte:
			res = append(res, v)
		case [20]byte:
			res = append(res, v[:])
		case [32]byte:
			res = append(res, v[:])
		case [][32]byte:
			res = append(res, encodeBytes32Array(v))
		case *big.Int:
			res = append(res, math.U256Bytes(v))
		case uint8:
			res = append(res, []byte{v})
		case uint16:
			res = append(res, encodeUint16(v))
		case uint32:
			res = append(res, encodeUint32(v))
		case uint64:
			res = append(res, encodeUint64(v))
		case bool:
			res = append(res, encodeBool(v))
		case common.Hash:
			res = append(res, v[:])
		case []common.Hash:
			res = append(res, encodeHashArray(v))
		case common.Address:
			res = append(res, v[:])
		case []common.Address:
			res = append(res, encodeAddressArray(v))
		}
	}
	return bytes.Join(res, nil)
}

func encodeAddressArray(arr []common.Address) []byte {
	var res [][]byte
	for _, v := range arr {
		res = append(res, v[:])
	}

	return bytes.Join(res, nil)
}

func encodeHashArray(arr []common.Hash) []byte {
	var res [][]byte
	for _, v := range arr {
		res = append(res, v[:])
	}

	return bytes.Join(res, nil)
}

func encodeBytes32Array(arr [][32]byte) []byte {
	var res [][]byte
	for _, v := range arr {
		res = append(res, v[:])
	}

	return bytes.Join(res, nil)
}

func encodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
