package ledger

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"

	"github.com/1sixtech/mojave-bridge-go/common"
)

func TestDomainSeparatorBindsInstance(t *testing.T) {
	cfg := SimLedgerConfig()
	d1 := DomainSeparator(cfg)

	other := *cfg
	other.ChainId = big.NewInt(90002)
	assert.NotEqual(t, d1, DomainSeparator(&other))

	other = *cfg
	other.BridgeAddress = common.RandEthAddress()
	assert.NotEqual(t, d1, DomainSeparator(&other))

	// same instance, same separator
	assert.Equal(t, d1, DomainSeparator(cfg))
}

func TestApprovalDigestCoversAllFields(t *testing.T) {
	cfg := SimLedgerConfig()
	domain := DomainSeparator(cfg)
	wid := common.RandBytes32()
	outputs := common.RandBytes32()
	setId := common.RandBytes32()

	base := ApprovalDigest(domain, wid, outputs, 1, 1000, setId)

	assert.NotEqual(t, base, ApprovalDigest(domain, common.RandBytes32(), outputs, 1, 1000, setId))
	assert.NotEqual(t, base, ApprovalDigest(domain, wid, common.RandBytes32(), 1, 1000, setId))
	assert.NotEqual(t, base, ApprovalDigest(domain, wid, outputs, 2, 1000, setId))
	assert.NotEqual(t, base, ApprovalDigest(domain, wid, outputs, 1, 1001, setId))
	assert.NotEqual(t, base, ApprovalDigest(domain, wid, outputs, 1, 1000, common.RandBytes32()))
	assert.Equal(t, base, ApprovalDigest(domain, wid, outputs, 1, 1000, setId))
}

func TestRecoverApproverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	digest := ethcommon.Hash(common.RandBytes32())
	sig, err := SignApproval(digest, key)
	assert.NoError(t, err)
	assert.Len(t, sig, 65)

	got, err := RecoverApprover(digest, sig)
	assert.NoError(t, err)
	assert.Equal(t, want, got)

	// a different digest recovers some other address
	other, err := RecoverApprover(ethcommon.Hash(common.RandBytes32()), sig)
	if err == nil {
		assert.NotEqual(t, want, other)
	}
}

func TestRecoverApproverRejectsBadLength(t *testing.T) {
	_, err := RecoverApprover(ethcommon.Hash{}, make([]byte, 64))
	assert.ErrorIs(t, err, ErrSignatureLength)
}

func TestOperatorSetIdOrderSensitive(t *testing.T) {
	a, b := common.RandEthAddress(), common.RandEthAddress()
	id1 := OperatorSetId([]ethcommon.Address{a, b}, 2)
	id2 := OperatorSetId([]ethcommon.Address{b, a}, 2)
	id3 := OperatorSetId([]ethcommon.Address{a, b}, 1)
	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}
