package headerrelay

import (
	"errors"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
)

var (
	ErrHeaderDuplicate    = errors.New("header already stored")
	ErrParentUnknown      = errors.New("parent header unknown")
	ErrParentHeight       = errors.New("parent height does not precede header height")
	ErrInsufficientWork   = errors.New("block hash exceeds target")
	ErrGenesisHashInvalid = errors.New("first header does not match configured genesis")
	ErrStorage            = errors.New("header storage failure")
)

// Relay stores bitcoin block headers, validates proof-of-work and parent
// linkage, and tracks the best and finalized chain tips by cumulative work.
type Relay struct {
	cfg   *RelayConfig
	store HeaderStorage

	mu sync.Mutex
}

func NewRelay(cfg *RelayConfig, store HeaderStorage) *Relay {
	return &Relay{cfg: cfg, store: store}
}

// SubmitHeader validates a raw 80-byte header at the claimed height and
// stores it. All rejects leave the store untouched; resubmission with
// corrected input is always allowed.
func (r *Relay) SubmitHeader(raw []byte, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := btcparse.ParseHeader(raw)
	if err != nil {
		return err
	}

	dup, err := r.store.HasHeader(h.BlockHash)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if dup {
		return ErrHeaderDuplicate
	}

	target := btcparse.TargetFromBits(h.Bits)
	if !btcparse.CheckProofOfWork(h.BlockHash, target) {
		return ErrInsufficientWork
	}
	work := btcparse.WorkFromTarget(target, r.cfg.MaxTarget)

	tip, err := r.store.GetTip()
	if err != nil {
		return errors.Join(ErrStorage, err)
	}

	var cumWork *big.Int
	if tip == nil {
		// bootstrap: the first header is the configured genesis
		if r.cfg.GenesisHash != [32]byte{} && h.BlockHash != ethcommon.Hash(r.cfg.GenesisHash) {
			return ErrGenesisHashInvalid
		}
		cumWork = work
	} else {
		parent, err := r.store.GetHeader(h.PrevHash)
		if err != nil {
			return errors.Join(ErrStorage, err)
		}
		if parent == nil {
			return ErrParentUnknown
		}
		if parent.Height+1 != height {
			return ErrParentHeight
		}
		cumWork = new(big.Int).Add(parent.CumulativeWork, work)
	}

	stored := &StoredHeader{
		Hash:           h.BlockHash,
		PrevHash:       ethcommon.Hash(h.PrevHash),
		MerkleRoot:     h.MerkleRoot,
		Height:         height,
		Timestamp:      h.Timestamp,
		Bits:           h.Bits,
		CumulativeWork: cumWork,
	}
	if err := r.store.InsertHeader(stored); err != nil {
		return errors.Join(ErrStorage, err)
	}

	if tip == nil {
		newTip := &ChainTip{
			BestHash:   stored.Hash,
			BestHeight: height,
			BestWork:   cumWork,
		}
		if err := r.store.SetTip(newTip); err != nil {
			return errors.Join(ErrStorage, err)
		}
		logger.WithFields(logger.Fields{
			"hash":   stored.Hash.String(),
			"height": height,
		}).Info("relay bootstrapped at genesis header")
		return nil
	}

	// strict greater-than: ties never move the tip
	if cumWork.Cmp(tip.BestWork) <= 0 {
		return nil
	}

	newTip := tip.Clone()
	newTip.BestHash = stored.Hash
	newTip.BestHeight = height
	newTip.BestWork = new(big.Int).Set(cumWork)

	if err := r.updateFinalized(stored, newTip); err != nil {
		return err
	}

	if err := r.store.SetTip(newTip); err != nil {
		return errors.Join(ErrStorage, err)
	}

	logger.WithFields(logger.Fields{
		"hash":      stored.Hash.String(),
		"height":    height,
		"finalized": newTip.FinalizedHeight,
	}).Debug("best tip advanced")
	return nil
}

// updateFinalized walks prevHash links backward from the new best tip by
// the finalization depth. Recomputing from the current best chain (instead
// of memoizing a distance) keeps finalization immune to an old pointer
// resurfacing on a weaker branch. The finalized height never decreases.
func (r *Relay) updateFinalized(best *StoredHeader, tip *ChainTip) error {
	if best.Height <= r.cfg.FinalizationDepth {
		return nil
	}

	cur := best
	for i := uint64(0); i < r.cfg.FinalizationDepth; i++ {
		parent, err := r.store.GetHeader(cur.PrevHash)
		if err != nil {
			return errors.Join(ErrStorage, err)
		}
		if parent == nil {
			// chain shorter than the depth below the stored genesis
			return nil
		}
		cur = parent
	}

	if cur.Height > tip.FinalizedHeight || tip.FinalizedHash == (ethcommon.Hash{}) {
		tip.FinalizedHash = cur.Hash
		tip.FinalizedHeight = cur.Height
	}
	return nil
}

// VerifyConfirmations reports whether the given header has at least minConf
// confirmations relative to the finalized height (falling back to the best
// height before anything finalized). Unknown headers and headers above the
// reference height report false.
func (r *Relay) VerifyConfirmations(headerHash ethcommon.Hash, minConf uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tip, err := r.store.GetTip()
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	if tip == nil {
		return false, nil
	}

	h, err := r.store.GetHeader(headerHash)
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	if h == nil {
		return false, nil
	}

	ref := tip.BestHeight
	if tip.FinalizedHeight > 0 {
		ref = tip.FinalizedHeight
	}
	if h.Height > ref {
		return false, nil
	}

	return ref-h.Height+1 >= minConf, nil
}

// VerifyMerkleProof checks a transaction inclusion proof against the merkle
// root embedded in a stored or caller-supplied header.
func (r *Relay) VerifyMerkleProof(leaf, root [32]byte, branch [][32]byte, index uint32) bool {
	return btcparse.VerifyMerkleProof(leaf, root, branch, index)
}

// Tip returns a copy of the current chain tip, or nil before genesis.
func (r *Relay) Tip() (*ChainTip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tip, err := r.store.GetTip()
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	if tip == nil {
		return nil, nil
	}
	return tip.Clone(), nil
}

// GetHeader exposes stored headers for read-only callers.
func (r *Relay) GetHeader(hash ethcommon.Hash) (*StoredHeader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.GetHeader(hash)
}
