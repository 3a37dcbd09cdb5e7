package headerrelay

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// StoredHeader is an accepted block header. Headers are immutable once
// stored; only the chain tip record changes afterwards.
type StoredHeader struct {
	Hash           ethcommon.Hash // doubleSHA256 of the raw header, internal byte order
	PrevHash       ethcommon.Hash
	MerkleRoot     [32]byte
	Height         uint64
	Timestamp      uint32
	Bits           uint32
	CumulativeWork *big.Int
}

// ChainTip tracks the best and finalized tips of the header DAG. The best
// tip follows cumulative work; the finalized tip trails it by the
// finalization depth and its height never decreases.
type ChainTip struct {
	BestHash        ethcommon.Hash
	BestHeight      uint64
	BestWork        *big.Int
	FinalizedHash   ethcommon.Hash
	FinalizedHeight uint64
}

func (t *ChainTip) Clone() *ChainTip {
	clone := *t
	if t.BestWork != nil {
		clone.BestWork = new(big.Int).Set(t.BestWork)
	}
	return &clone
}
