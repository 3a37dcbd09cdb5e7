package common

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func IsValidBtcAddress(address string, cfg *chaincfg.Params) bool {
	if _, err := btcutil.DecodeAddress(address, cfg); err != nil {
		return false
	}

	return true
}

// DoubleSHA256 is the hash bitcoin uses for block hashes, txids and
// merkle nodes.
func DoubleSHA256(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], chainhash.DoubleHashB(b))
	return out
}

// AnchorScript is the pay-to-anchor output script (OP_1 <0x4e73>) a
// settlement transaction carries when fee bumping must stay possible.
func AnchorScript() []byte {
	return []byte{0x51, 0x02, 0x4e, 0x73}
}

// ReverseBytes32 flips between bitcoin's display byte order and the
// internal byte order of the hash output.
func ReverseBytes32(b [32]byte) [32]byte {
	var out [32]byte
	for i := 0; i < 32; i++ {
		out[i] = b[31-i]
	}
	return out
}
