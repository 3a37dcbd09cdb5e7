package headerrelay

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
)

func newTestRelay(t *testing.T, depth uint64) *Relay {
	t.Helper()
	store, err := NewHeaderSQLiteStorage(getMemoryDB())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return NewRelay(&RelayConfig{
		FinalizationDepth: depth,
		MaxTarget:         btcparse.TargetFromBits(RegtestBits),
	}, store)
}

func TestSubmitHeaderChain(t *testing.T) {
	relay := newTestRelay(t, 6)
	chain := NewSimChain(0)
	chain.Extend()
	require.NoError(t, chain.SubmitAll(relay))

	tip, err := relay.Tip()
	require.NoError(t, err)
	assert.Equal(t, chain.Tip().Hash, tip.BestHash)
	assert.Equal(t, uint64(1), tip.BestHeight)
	assert.Equal(t, uint64(0), tip.FinalizedHeight)

	// genesis + block 1: genesis has 2 confirmations already
	ok, err := relay.VerifyConfirmations(chain.Headers[0].Hash, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// block 1 needs 6 confirmations: not yet
	ok, err = relay.VerifyConfirmations(chain.Headers[1].Hash, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	// mine 5 more, block 1 reaches 6 confirmations
	for i := 0; i < 5; i++ {
		h := chain.Extend()
		require.NoError(t, relay.SubmitHeader(h.Raw, h.Height))
	}
	ok, err = relay.VerifyConfirmations(chain.Headers[1].Hash, 6)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubmitHeaderRejects(t *testing.T) {
	relay := newTestRelay(t, 6)

	// malformed length
	assert.ErrorIs(t, relay.SubmitHeader(make([]byte, 79), 0), btcparse.ErrHeaderSize)

	chain := NewSimChain(0)
	require.NoError(t, chain.SubmitAll(relay))

	// duplicate
	assert.ErrorIs(t, relay.SubmitHeader(chain.Headers[0].Raw, 0), ErrHeaderDuplicate)

	// unknown parent
	orphan := MineSimHeader(common.RandBytes32(), 5, [32]byte{}, 9)
	assert.ErrorIs(t, relay.SubmitHeader(orphan.Raw, 5), ErrParentUnknown)

	// wrong height linkage
	child := MineSimHeader(chain.Tip().Hash, 2, [32]byte{}, 10)
	assert.ErrorIs(t, relay.SubmitHeader(child.Raw, 2), ErrParentHeight)

	// insufficient work: a near-zero target rejects any real hash
	hard := btcparse.BuildRawHeader(2, chain.Tip().Hash, common.RandBytes32(), 1, 0x03000001, 0)
	assert.ErrorIs(t, relay.SubmitHeader(hard, 1), ErrInsufficientWork)

	// rejects leave no partial state: tip unchanged
	tip, err := relay.Tip()
	require.NoError(t, err)
	assert.Equal(t, chain.Tip().Hash, tip.BestHash)
}

func TestGenesisHashPinned(t *testing.T) {
	store, err := NewHeaderSQLiteStorage(getMemoryDB())
	require.NoError(t, err)
	defer store.Close()

	wanted := MineSimHeader(ethcommon.Hash{}, 0, [32]byte{}, 77)
	relay := NewRelay(&RelayConfig{
		FinalizationDepth: 6,
		MaxTarget:         btcparse.TargetFromBits(RegtestBits),
		GenesisHash:       wanted.Hash,
	}, store)

	other := MineSimHeader(ethcommon.Hash{}, 0, [32]byte{}, 78)
	assert.ErrorIs(t, relay.SubmitHeader(other.Raw, 0), ErrGenesisHashInvalid)
	assert.NoError(t, relay.SubmitHeader(wanted.Raw, 0))
}

func TestFinalizationAdvances(t *testing.T) {
	relay := newTestRelay(t, 3)
	chain := NewSimChain(0)
	for i := 0; i < 5; i++ {
		chain.Extend()
	}
	require.NoError(t, chain.SubmitAll(relay))

	tip, err := relay.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), tip.BestHeight)
	// best=5, depth=3 -> finalized height 2
	assert.Equal(t, uint64(2), tip.FinalizedHeight)
	assert.Equal(t, chain.Headers[2].Hash, tip.FinalizedHash)
}

func TestFinalizedHeightMonotonicAcrossBranches(t *testing.T) {
	relay := newTestRelay(t, 2)
	chain := NewSimChain(0)
	for i := 0; i < 6; i++ {
		chain.Extend()
	}
	require.NoError(t, chain.SubmitAll(relay))

	tipBefore, err := relay.Tip()
	require.NoError(t, err)
	require.Equal(t, uint64(4), tipBefore.FinalizedHeight)

	// a competing branch from height 1 with less cumulative work: headers
	// are accepted but neither the best nor the finalized tip may move
	forkParent := chain.Headers[1]
	fork := MineSimHeader(forkParent.Hash, 2, [32]byte{}, 1000)
	require.NoError(t, relay.SubmitHeader(fork.Raw, 2))
	fork2 := MineSimHeader(fork.Hash, 3, [32]byte{}, 1001)
	require.NoError(t, relay.SubmitHeader(fork2.Raw, 3))

	tipAfter, err := relay.Tip()
	require.NoError(t, err)
	assert.Equal(t, tipBefore.BestHash, tipAfter.BestHash)
	assert.Equal(t, tipBefore.FinalizedHeight, tipAfter.FinalizedHeight)
	assert.Equal(t, tipBefore.FinalizedHash, tipAfter.FinalizedHash)
}

func TestVerifyConfirmationsEdgeCases(t *testing.T) {
	relay := newTestRelay(t, 6)

	// before genesis everything is unconfirmed
	ok, err := relay.VerifyConfirmations(common.RandBytes32(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	chain := NewSimChain(0)
	require.NoError(t, chain.SubmitAll(relay))

	// unknown header
	ok, err = relay.VerifyConfirmations(common.RandBytes32(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyConfirmationsUsesFinalizedReference(t *testing.T) {
	relay := newTestRelay(t, 2)
	chain := NewSimChain(0)
	for i := 0; i < 4; i++ {
		chain.Extend()
	}
	require.NoError(t, chain.SubmitAll(relay))

	// best=4, finalized=2; the reference is the finalized height, so the
	// best tip itself sits above it and reports unconfirmed
	ok, err := relay.VerifyConfirmations(chain.Headers[4].Hash, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = relay.VerifyConfirmations(chain.Headers[2].Hash, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = relay.VerifyConfirmations(chain.Headers[0].Hash, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = relay.VerifyConfirmations(chain.Headers[0].Hash, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMinedHeadersSatisfyTarget(t *testing.T) {
	target := btcparse.TargetFromBits(RegtestBits)
	chain := NewSimChain(0)
	for i := 0; i < 32; i++ {
		chain.Extend()
	}
	for _, h := range chain.Headers {
		assert.True(t, btcparse.CheckProofOfWork(h.Hash, target), "height %d", h.Height)
	}

	// and the relay accepts every one of them
	relay := newTestRelay(t, 6)
	require.NoError(t, chain.SubmitAll(relay))
}
