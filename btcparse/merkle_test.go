package btcparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/1sixtech/mojave-bridge-go/common"
)

func hashPair(a, b [32]byte) [32]byte {
	var joined [64]byte
	copy(joined[:32], a[:])
	copy(joined[32:], b[:])
	return common.DoubleSHA256(joined[:])
}

func TestVerifyMerkleProofFourLeaves(t *testing.T) {
	leaves := [][32]byte{
		common.DoubleSHA256([]byte("tx0")),
		common.DoubleSHA256([]byte("tx1")),
		common.DoubleSHA256([]byte("tx2")),
		common.DoubleSHA256([]byte("tx3")),
	}
	left := hashPair(leaves[0], leaves[1])
	right := hashPair(leaves[2], leaves[3])
	root := hashPair(left, right)

	branches := [][][32]byte{
		{leaves[1], right},
		{leaves[0], right},
		{leaves[3], left},
		{leaves[2], left},
	}

	for i, leaf := range leaves {
		assert.True(t, VerifyMerkleProof(leaf, root, branches[i], uint32(i)),
			"leaf %d", i)
	}

	// wrong index flips the pair order and must fail
	assert.False(t, VerifyMerkleProof(leaves[0], root, branches[0], 1))
	// wrong sibling
	assert.False(t, VerifyMerkleProof(leaves[0], root, branches[1], 0))
	// wrong root
	assert.False(t, VerifyMerkleProof(leaves[0], common.RandBytes32(), branches[0], 0))
}

func TestVerifyMerkleProofSingleLeaf(t *testing.T) {
	// a block with one transaction: the txid is the root, branch is empty
	leaf := common.DoubleSHA256([]byte("only"))
	assert.True(t, VerifyMerkleProof(leaf, leaf, nil, 0))
	assert.False(t, VerifyMerkleProof(leaf, common.RandBytes32(), nil, 0))
}
