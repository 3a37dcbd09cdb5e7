package ledger

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/headerrelay"
	"github.com/1sixtech/mojave-bridge-go/record"
	"github.com/1sixtech/mojave-bridge-go/tokenledger"
)

// BridgeLedger owns deposit claiming, the UTXO registry and the withdrawal
// state machine. It is a sequential state machine: every entry point is one
// atomic transition against the exclusively-owned store, serialized by a
// single mutex. External actors only ever consume emitted records or call
// read-only queries.
type BridgeLedger struct {
	cfg       *LedgerConfig
	db        *LedgerDB
	relay     *headerrelay.Relay
	tokens    tokenledger.TokenLedger
	publisher *record.Publisher

	mu sync.Mutex
}

func NewBridgeLedger(cfg *LedgerConfig, db *LedgerDB, relay *headerrelay.Relay, tokens tokenledger.TokenLedger, publisher *record.Publisher) *BridgeLedger {
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().Unix() }
	}
	return &BridgeLedger{
		cfg:       cfg,
		db:        db,
		relay:     relay,
		tokens:    tokens,
		publisher: publisher,
	}
}

// ClaimDeposit verifies an SPV inclusion proof plus an output scan against
// the committed envelope and mints wrapped funds exactly once per bitcoin
// output.
func (l *BridgeLedger) ClaimDeposit(recipient ethcommon.Address, amountSats uint64, envelopeHash ethcommon.Hash, proof *SPVProof) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amountSats == 0 {
		return ErrAmountZero
	}
	if len(proof.Header) != btcparse.HeaderSize {
		return ErrProofHeaderInvalid
	}

	// 1. confirmation depth via the header relay. The bundled-header
	// fallback (proof.ExtraHeaders) is deliberately not honored; its
	// verification semantics are unspecified and treating it as valid
	// would let an attacker fabricate confirmations.
	headerHash := common.DoubleSHA256(proof.Header)
	confirmed, err := l.relay.VerifyConfirmations(headerHash, l.cfg.MinConfirmations)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if !confirmed {
		return ErrInsufficientConfirmations
	}

	// 2. merkle inclusion against the header's embedded root
	header, err := btcparse.ParseHeader(proof.Header)
	if err != nil {
		return err
	}
	leaf := common.ReverseBytes32(proof.Txid)
	if !btcparse.VerifyMerkleProof(leaf, header.MerkleRoot, proof.MerkleBranch, proof.Index) {
		return ErrMerkleMismatch
	}

	// 3. output scan: exact vault payment + matching envelope commitment
	outputs, err := btcparse.ScanOutputs(proof.RawTx)
	if err != nil {
		return err
	}

	vaultVout := int64(-1)
	envelopeSeen := false
	for _, out := range outputs {
		if out.Value == amountSats && common.CompareSlices(out.PkScript, l.cfg.VaultScript) {
			if vaultVout < 0 {
				vaultVout = int64(out.Index)
			}
			continue
		}
		if payload, ok := btcparse.ExtractOpReturn(out.PkScript); ok {
			if crypto.Keccak256Hash(payload) == envelopeHash {
				envelopeSeen = true
			}
		}
	}
	if vaultVout < 0 {
		return ErrVaultOutputMissing
	}
	if !envelopeSeen {
		return ErrEnvelopeMismatch
	}

	// 4. exactly-once per outpoint
	vout := uint32(vaultVout)
	processed, err := l.db.HasProcessedOutpoint(proof.Txid, vout)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if processed {
		return ErrDuplicateDeposit
	}

	// 5. mint and register. One transaction: a failed mint must not
	// leave the outpoint booked as processed, or the deposit could
	// never be retried.
	utxo := &UtxoRecord{
		Id:         UtxoId(proof.Txid, vout),
		Txid:       proof.Txid,
		Vout:       vout,
		AmountSats: amountSats,
		Source:     SourceDeposit,
	}
	err = l.db.WithTx(func(tx *sql.Tx) error {
		if err := l.db.InsertProcessedOutpoint(tx, proof.Txid, vout); err != nil {
			return errors.Join(ErrStorage, err)
		}
		if err := l.db.InsertUtxo(tx, utxo); err != nil {
			return errors.Join(ErrStorage, err)
		}
		return l.tokens.Mint(recipient, satsToBig(amountSats))
	})
	if err != nil {
		return err
	}

	l.publisher.NotifyDeposit(record.DepositFinalized{
		Txid:       proof.Txid,
		Vout:       vout,
		Recipient:  recipient,
		AmountSats: amountSats,
	})
	l.publisher.NotifyUtxoRegistered(record.UtxoRegistered{
		UtxoId:     utxo.Id,
		Txid:       proof.Txid,
		Vout:       vout,
		AmountSats: amountSats,
		Source:     record.SourceDeposit,
	})

	logger.WithFields(logger.Fields{
		"txid":      common.Shorten(common.Prepend0xPrefix(common.ByteSliceToPureHexStr(proof.Txid[:])), 6),
		"vout":      vout,
		"amount":    amountSats,
		"recipient": recipient.String(),
	}).Info("deposit claimed")
	return nil
}

// RegisterCollateral adds an operator-funded output to the spendable
// registry. Registration shares the processed-outpoint set with deposits so
// the same output can never be booked twice.
func (l *BridgeLedger) RegisterCollateral(txid [32]byte, vout uint32, amountSats uint64) error {
	return l.registerExternal(txid, vout, amountSats, SourceCollateral, record.SourceCollateral)
}

// RegisterChange re-registers the change output of a finalized settlement
// transaction so it re-enters the spendable pool.
func (l *BridgeLedger) RegisterChange(txid [32]byte, vout uint32, amountSats uint64) error {
	return l.registerExternal(txid, vout, amountSats, SourceChange, record.SourceChange)
}

func (l *BridgeLedger) registerExternal(txid [32]byte, vout uint32, amountSats uint64, source UtxoSource, recSource record.UtxoSource) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amountSats == 0 {
		return ErrAmountZero
	}

	processed, err := l.db.HasProcessedOutpoint(txid, vout)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if processed {
		return ErrUtxoDuplicate
	}
	utxo := &UtxoRecord{
		Id:         UtxoId(txid, vout),
		Txid:       txid,
		Vout:       vout,
		AmountSats: amountSats,
		Source:     source,
	}
	err = l.db.WithTx(func(tx *sql.Tx) error {
		if err := l.db.InsertProcessedOutpoint(tx, txid, vout); err != nil {
			return err
		}
		return l.db.InsertUtxo(tx, utxo)
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}

	l.publisher.NotifyUtxoRegistered(record.UtxoRegistered{
		UtxoId:     utxo.Id,
		Txid:       txid,
		Vout:       vout,
		AmountSats: amountSats,
		Source:     recSource,
	})
	return nil
}

// RegisterOperatorSet installs a new threshold group and makes it the
// active set for withdrawals created from now on. Existing withdrawals keep
// the set they snapshotted.
func (l *BridgeLedger) RegisterOperatorSet(members []ethcommon.Address, threshold int) (ethcommon.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(members) == 0 || len(members) > MaxOperators ||
		threshold <= 0 || threshold > len(members) {
		return ethcommon.Hash{}, ErrOperatorSetClosed
	}
	seen := make(map[ethcommon.Address]bool, len(members))
	for _, m := range members {
		if seen[m] {
			return ethcommon.Hash{}, ErrOperatorSetClosed
		}
		seen[m] = true
	}

	set := &OperatorSet{
		Id:        OperatorSetId(members, threshold),
		Members:   members,
		Threshold: threshold,
		Active:    true,
	}
	if err := l.db.InsertOperatorSet(set); err != nil {
		return ethcommon.Hash{}, errors.Join(ErrStorage, err)
	}

	logger.WithFields(logger.Fields{
		"set":       common.Shorten(set.Id.String(), 6),
		"members":   len(members),
		"threshold": threshold,
	}).Info("operator set registered")
	return set.Id, nil
}

// GetUtxo is a read-only registry query.
func (l *BridgeLedger) GetUtxo(id ethcommon.Hash) (*UtxoRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.GetUtxo(id)
}

// GetWithdrawal is a read-only state query.
func (l *BridgeLedger) GetWithdrawal(id ethcommon.Hash) (*Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.GetWithdrawal(id)
}

// UtxoStats feeds the reporter.
func (l *BridgeLedger) UtxoStats() (total, available int, availableSats uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.UtxoStats()
}
