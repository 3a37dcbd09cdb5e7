package headerrelay

import "math/big"

type RelayConfig struct {
	// FinalizationDepth is how many blocks the finalized tip trails the
	// best tip.
	FinalizationDepth uint64

	// MaxTarget caps the proof-of-work target and anchors the per-block
	// work computation (maxTarget/target).
	MaxTarget *big.Int

	// GenesisHash pins the first accepted header. Zero means the first
	// submitted header bootstraps the relay.
	GenesisHash [32]byte
}
