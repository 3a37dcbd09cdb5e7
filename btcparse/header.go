package btcparse

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/1sixtech/mojave-bridge-go/common"
)

const HeaderSize = 80

var ErrHeaderSize = errors.New("header must be 80 bytes")

// Header holds the fields of an 80-byte bitcoin block header. Hash fields
// keep the internal byte order they carry on the wire.
type Header struct {
	Version    uint32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32

	// BlockHash is doubleSHA256 over the raw 80 bytes, internal byte order.
	BlockHash ethcommon.Hash
}

// ParseHeader decodes an 80-byte header. Integer fields are little-endian
// on the wire.
func ParseHeader(raw []byte) (*Header, error) {
	if len(raw) != HeaderSize {
		return nil, ErrHeaderSize
	}

	c := NewCursor(raw)
	h := &Header{}

	var err error
	if h.Version, err = c.ReadUint32LE(); err != nil {
		return nil, err
	}
	prev, err := c.ReadBytes(32)
	if err != nil {
		return nil, err
	}
	copy(h.PrevHash[:], prev)
	root, err := c.ReadBytes(32)
	if err != nil {
		return nil, err
	}
	copy(h.MerkleRoot[:], root)
	if h.Timestamp, err = c.ReadUint32LE(); err != nil {
		return nil, err
	}
	if h.Bits, err = c.ReadUint32LE(); err != nil {
		return nil, err
	}
	if h.Nonce, err = c.ReadUint32LE(); err != nil {
		return nil, err
	}

	h.BlockHash = common.DoubleSHA256(raw)
	return h, nil
}

// TargetFromBits expands the compact "bits" difficulty encoding into the
// full 256-bit proof-of-work target.
func TargetFromBits(bits uint32) *big.Int {
	exponent := uint(bits >> 24)
	mantissa := new(big.Int).SetUint64(uint64(bits & 0xffffff))

	if exponent > 3 {
		return mantissa.Lsh(mantissa, 8*(exponent-3))
	}
	return mantissa.Rsh(mantissa, 8*(3-exponent))
}

// WorkFromTarget computes maxTarget/target as the per-block work, clamped
// to at least 1 so very easy test-network targets still accumulate.
func WorkFromTarget(target, maxTarget *big.Int) *big.Int {
	if target == nil || target.Sign() <= 0 {
		return big.NewInt(1)
	}
	work := new(big.Int).Div(maxTarget, target)
	if work.Sign() <= 0 {
		return big.NewInt(1)
	}
	return work
}

// CheckProofOfWork verifies reversed(blockHash) <= target. The reversal is
// needed because bitcoin treats hashes as little-endian numbers while the
// hash function output is big-endian.
func CheckProofOfWork(blockHash ethcommon.Hash, target *big.Int) bool {
	reversed := common.ReverseBytes32(blockHash)
	hashNum := new(big.Int).SetBytes(reversed[:])
	return hashNum.Cmp(target) <= 0
}
