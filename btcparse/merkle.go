package btcparse

import (
	"github.com/1sixtech/mojave-bridge-go/common"
)

// VerifyMerkleProof folds leaf with each sibling of branch up to the root.
// The pair order at each level follows the parity of index: an even index
// means the running hash is the left node. All hashes are in internal byte
// order, the order the merkle root appears inside a block header.
func VerifyMerkleProof(leaf, root [32]byte, branch [][32]byte, index uint32) bool {
	cur := leaf
	for _, sibling := range branch {
		var joined [64]byte
		if index&1 == 0 {
			copy(joined[:32], cur[:])
			copy(joined[32:], sibling[:])
		} else {
			copy(joined[:32], sibling[:])
			copy(joined[32:], cur[:])
		}
		cur = common.DoubleSHA256(joined[:])
		index >>= 1
	}
	return cur == root
}
