package ledger

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/record"
)

func newDepositFixture(t *testing.T, cfg *LedgerConfig, amount uint64) (*SimBridge, *SimDeposit) {
	b, err := NewSimBridge(cfg)
	require.NoError(t, err)

	env := &common.DepositEnvelope{
		ChainId:       cfg.ChainId,
		BridgeAddress: cfg.BridgeAddress,
		Recipient:     common.RandEthAddress(),
		Amount:        new(big.Int).SetUint64(amount),
	}
	d := BuildSimDeposit(cfg.VaultScript, amount, env)
	require.NoError(t, b.ConfirmDeposit(d))
	return b, d
}

func TestClaimDepositMintsOnce(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 250_000)
	recipient := common.RandEthAddress()

	depositCh := make(chan record.DepositFinalized, 1)
	utxoCh := make(chan record.UtxoRegistered, 1)
	b.Pub.RegisterDepositObserver(depositCh)
	b.Pub.RegisterUtxoRegisteredObserver(utxoCh)

	// require: a failed claim with no record on the channels below
	// would otherwise hang the receive
	err := b.Ledger.ClaimDeposit(recipient, 250_000, d.EnvelopeHash, d.Proof)
	require.NoError(t, err)

	bal, err := b.Tokens.BalanceOf(recipient)
	assert.NoError(t, err)
	assert.Equal(t, uint64(250_000), bal.Uint64())

	dep := <-depositCh
	assert.Equal(t, recipient, dep.Recipient)
	assert.Equal(t, uint64(250_000), dep.AmountSats)

	reg := <-utxoCh
	assert.Equal(t, record.SourceDeposit, reg.Source)
	assert.Equal(t, UtxoId(d.Proof.Txid, dep.Vout), reg.UtxoId)

	u, err := b.Ledger.GetUtxo(reg.UtxoId)
	assert.NoError(t, err)
	assert.NotNil(t, u)
	assert.False(t, u.Spent)
	assert.Equal(t, SourceDeposit, u.Source)

	// replay mints nothing
	err = b.Ledger.ClaimDeposit(recipient, 250_000, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrDuplicateDeposit)
	bal, _ = b.Tokens.BalanceOf(recipient)
	assert.Equal(t, uint64(250_000), bal.Uint64())
}

func TestClaimDepositRetriesAfterMintFailure(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 40_000)
	recipient := common.RandEthAddress()

	// a failed mint must roll the processed-outpoint booking back, or
	// the deposit could never be claimed again
	mintDown := errors.New("token ledger unavailable")
	b.Tokens.FailNextMint(mintDown)
	err := b.Ledger.ClaimDeposit(recipient, 40_000, d.EnvelopeHash, d.Proof)
	require.ErrorIs(t, err, mintDown)

	processed, err := b.DB.HasProcessedOutpoint(d.Proof.Txid, 0)
	require.NoError(t, err)
	assert.False(t, processed)
	u, err := b.Ledger.GetUtxo(UtxoId(d.Proof.Txid, 0))
	require.NoError(t, err)
	assert.Nil(t, u)

	// the retry mints normally
	require.NoError(t, b.Ledger.ClaimDeposit(recipient, 40_000, d.EnvelopeHash, d.Proof))
	bal, _ := b.Tokens.BalanceOf(recipient)
	assert.Equal(t, uint64(40_000), bal.Uint64())
}

func TestClaimDepositRejectsUnconfirmed(t *testing.T) {
	cfg := SimLedgerConfig()
	b, err := NewSimBridge(cfg)
	assert.NoError(t, err)

	env := &common.DepositEnvelope{
		ChainId:       cfg.ChainId,
		BridgeAddress: cfg.BridgeAddress,
		Recipient:     common.RandEthAddress(),
		Amount:        big.NewInt(1000),
	}
	d := BuildSimDeposit(cfg.VaultScript, 1000, env)
	d.MineInto(b.Chain)
	// only the containing block, no confirmations on top
	assert.NoError(t, b.Chain.SubmitAll(b.Relay))

	err = b.Ledger.ClaimDeposit(common.RandEthAddress(), 1000, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrInsufficientConfirmations)
	assert.Equal(t, CategoryConsensusViolation, Categorize(err))
}

func TestClaimDepositRejectsUnknownHeader(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 1000)

	// header the relay never saw
	forged := btcparse.BuildRawHeader(2, common.RandBytes32(), d.TxidInternal, 1700000123, 0x207fffff, 7)
	d.Proof.Header = forged

	err := b.Ledger.ClaimDeposit(common.RandEthAddress(), 1000, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrInsufficientConfirmations)
}

func TestClaimDepositRejectsMerkleMismatch(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 1000)

	d.Proof.MerkleBranch = [][32]byte{common.RandBytes32()}
	err := b.Ledger.ClaimDeposit(common.RandEthAddress(), 1000, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrMerkleMismatch)
}

func TestClaimDepositRejectsWrongAmount(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 1000)

	err := b.Ledger.ClaimDeposit(common.RandEthAddress(), 999, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrVaultOutputMissing)
}

func TestClaimDepositRejectsEnvelopeMismatch(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 1000)

	otherEnv := &common.DepositEnvelope{
		ChainId:       cfg.ChainId,
		BridgeAddress: cfg.BridgeAddress,
		Recipient:     common.RandEthAddress(),
		Amount:        big.NewInt(1000),
	}
	err := b.Ledger.ClaimDeposit(common.RandEthAddress(), 1000, otherEnv.Hash(), d.Proof)
	assert.ErrorIs(t, err, ErrEnvelopeMismatch)
}

func TestClaimDepositRejectsZeroAmountAndBadHeader(t *testing.T) {
	cfg := SimLedgerConfig()
	b, d := newDepositFixture(t, cfg, 1000)

	err := b.Ledger.ClaimDeposit(common.RandEthAddress(), 0, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrAmountZero)
	assert.Equal(t, CategoryMalformedInput, Categorize(err))

	d.Proof.Header = d.Proof.Header[:79]
	err = b.Ledger.ClaimDeposit(common.RandEthAddress(), 1000, d.EnvelopeHash, d.Proof)
	assert.ErrorIs(t, err, ErrProofHeaderInvalid)
}

func TestRegisterCollateralAndChange(t *testing.T) {
	cfg := SimLedgerConfig()
	b, err := NewSimBridge(cfg)
	assert.NoError(t, err)

	txid := common.RandBytes32()
	assert.NoError(t, b.Ledger.RegisterCollateral(txid, 0, 500_000))

	u, err := b.Ledger.GetUtxo(UtxoId(txid, 0))
	assert.NoError(t, err)
	assert.Equal(t, SourceCollateral, u.Source)
	assert.Equal(t, uint64(500_000), u.AmountSats)

	// same outpoint cannot be booked twice, under either source
	assert.ErrorIs(t, b.Ledger.RegisterCollateral(txid, 0, 500_000), ErrUtxoDuplicate)
	assert.ErrorIs(t, b.Ledger.RegisterChange(txid, 0, 500_000), ErrUtxoDuplicate)

	assert.NoError(t, b.Ledger.RegisterChange(txid, 1, 120_000))
	u, err = b.Ledger.GetUtxo(UtxoId(txid, 1))
	assert.NoError(t, err)
	assert.Equal(t, SourceChange, u.Source)

	total, available, availableSats, err := b.Ledger.UtxoStats()
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, available)
	assert.Equal(t, uint64(620_000), availableSats)
}

func TestRegisterOperatorSetActivation(t *testing.T) {
	cfg := SimLedgerConfig()
	b, err := NewSimBridge(cfg)
	assert.NoError(t, err)

	ops1, err := NewSimOperators(3, 2)
	assert.NoError(t, err)
	id1, err := b.Ledger.RegisterOperatorSet(ops1.Members, ops1.Threshold)
	assert.NoError(t, err)
	assert.Equal(t, OperatorSetId(ops1.Members, 2), id1)

	ops2, err := NewSimOperators(5, 4)
	assert.NoError(t, err)
	id2, err := b.Ledger.RegisterOperatorSet(ops2.Members, ops2.Threshold)
	assert.NoError(t, err)

	active, err := b.DB.GetActiveOperatorSet()
	assert.NoError(t, err)
	assert.Equal(t, id2, active.Id)
	assert.Equal(t, 4, active.Threshold)

	// the superseded set stays queryable for old withdrawals
	old, err := b.DB.GetOperatorSet(id1)
	assert.NoError(t, err)
	assert.False(t, old.Active)
	assert.Equal(t, ops1.Members, old.Members)
}

func TestRegisterOperatorSetRejectsBadShape(t *testing.T) {
	cfg := SimLedgerConfig()
	b, err := NewSimBridge(cfg)
	assert.NoError(t, err)

	ops, err := NewSimOperators(3, 2)
	assert.NoError(t, err)

	_, err = b.Ledger.RegisterOperatorSet(nil, 1)
	assert.ErrorIs(t, err, ErrOperatorSetClosed)
	_, err = b.Ledger.RegisterOperatorSet(ops.Members, 0)
	assert.ErrorIs(t, err, ErrOperatorSetClosed)
	_, err = b.Ledger.RegisterOperatorSet(ops.Members, 4)
	assert.ErrorIs(t, err, ErrOperatorSetClosed)
	// duplicate member
	dup := append(append([]ethcommon.Address(nil), ops.Members...), ops.Members[0])
	_, err = b.Ledger.RegisterOperatorSet(dup, 2)
	assert.ErrorIs(t, err, ErrOperatorSetClosed)
}
