package headerrelay

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// HeaderStorage is the persistence backend of the relay. Implementations
// must treat inserted headers as immutable.
type HeaderStorage interface {
	// InsertHeader stores a newly accepted header.
	InsertHeader(h *StoredHeader) error

	// HasHeader reports whether a header with the given hash is stored.
	HasHeader(hash ethcommon.Hash) (bool, error)

	// GetHeader retrieves a header by hash. Returns (nil, nil) when absent.
	GetHeader(hash ethcommon.Hash) (*StoredHeader, error)

	// GetTip returns the persisted chain tip, or (nil, nil) before the
	// genesis header was submitted.
	GetTip() (*ChainTip, error)

	// SetTip overwrites the persisted chain tip.
	SetTip(tip *ChainTip) error
}
