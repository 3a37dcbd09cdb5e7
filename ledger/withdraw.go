package ledger

import (
	"database/sql"
	"errors"
	"math"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/record"
)

func satsToBig(sats uint64) *big.Int {
	return new(big.Int).SetUint64(sats)
}

// RequestWithdraw locks the requester's wrapped funds and opens a pending
// withdrawal bound to an immutable output commitment and the currently
// active operator set. The proposed UTXOs are validated but stay unspent
// until finalization.
func (l *BridgeLedger) RequestWithdraw(requester ethcommon.Address, amountSats uint64, destScript []byte, deadline int64, proposedUtxos []ethcommon.Hash) (ethcommon.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amountSats == 0 {
		return ethcommon.Hash{}, ErrAmountZero
	}
	if len(destScript) == 0 {
		return ethcommon.Hash{}, ErrDestScriptEmpty
	}
	if deadline <= l.cfg.Now() {
		return ethcommon.Hash{}, ErrDeadlineElapsed
	}
	if len(proposedUtxos) == 0 {
		return ethcommon.Hash{}, ErrInputSumTooLow
	}

	// validate the proposed inputs against the registry. Each id may
	// appear once: a repeated id would double-count into the input sum.
	var totalInput uint64
	seen := make(map[ethcommon.Hash]struct{}, len(proposedUtxos))
	for _, id := range proposedUtxos {
		if _, dup := seen[id]; dup {
			return ethcommon.Hash{}, ErrUtxoDuplicate
		}
		seen[id] = struct{}{}

		u, err := l.db.GetUtxo(id)
		if err != nil {
			return ethcommon.Hash{}, errors.Join(ErrStorage, err)
		}
		if u == nil {
			return ethcommon.Hash{}, ErrUtxoUnknown
		}
		if u.Spent {
			return ethcommon.Hash{}, ErrUtxoSpent
		}
		switch u.Source {
		case SourceDeposit, SourceChange, SourceCollateral:
		default:
			return ethcommon.Hash{}, ErrUtxoSourceInvalid
		}
		if u.AmountSats > math.MaxUint64-totalInput {
			return ethcommon.Hash{}, ErrInputSumTooLow
		}
		totalInput += u.AmountSats
	}
	overhead := l.cfg.FeeSats + l.cfg.FeeBufferSats
	if overhead < l.cfg.FeeSats || amountSats > math.MaxUint64-overhead {
		return ethcommon.Hash{}, ErrInputSumTooLow
	}
	if totalInput < amountSats+overhead {
		return ethcommon.Hash{}, ErrInputSumTooLow
	}

	set, err := l.db.GetActiveOperatorSet()
	if err != nil {
		return ethcommon.Hash{}, errors.Join(ErrStorage, err)
	}
	if set == nil {
		return ethcommon.Hash{}, ErrNoActiveOperatorSet
	}

	tip, err := l.relay.Tip()
	if err != nil {
		return ethcommon.Hash{}, errors.Join(ErrStorage, err)
	}
	var tipHeight uint64
	if tip != nil {
		tipHeight = tip.BestHeight
	}
	nonce, err := l.db.NextNonce(requester)
	if err != nil {
		return ethcommon.Hash{}, errors.Join(ErrStorage, err)
	}

	// the requester escrows amount plus the committed miner fee
	if err := l.tokens.Lock(requester, satsToBig(amountSats+l.cfg.FeeSats)); err != nil {
		return ethcommon.Hash{}, err
	}

	wid := crypto.Keccak256Hash(common.EncodePacked(
		requester,
		amountSats,
		crypto.Keccak256Hash(destScript),
		tipHeight,
		nonce,
	))
	w := &Withdrawal{
		Id:             wid,
		Requester:      requester,
		AmountSats:     amountSats,
		DestScript:     destScript,
		Deadline:       deadline,
		OutputsHash:    OutputsHash(amountSats, destScript, l.cfg.ChangeScript, l.cfg.AnchorRequired, l.cfg.FeeSats, l.cfg.PolicyVersion),
		Version:        l.cfg.PolicyVersion,
		OperatorSetId:  set.Id,
		FeeSats:        l.cfg.FeeSats,
		AnchorRequired: l.cfg.AnchorRequired,
		Status:         StatusPending,
		UtxoIds:        proposedUtxos,
		TotalInputSats: totalInput,
	}
	if err := l.db.InsertWithdrawal(w); err != nil {
		// refund before surfacing; nothing was committed yet
		if uerr := l.tokens.Unlock(requester, satsToBig(amountSats+l.cfg.FeeSats)); uerr != nil {
			err = errors.Join(err, uerr)
		}
		return ethcommon.Hash{}, errors.Join(ErrStorage, err)
	}

	l.publisher.NotifyWithdrawalInitiated(record.WithdrawalInitiated{
		WithdrawalId:  wid,
		Requester:     requester,
		AmountSats:    amountSats,
		DestScript:    destScript,
		Deadline:      deadline,
		OutputsHash:   w.OutputsHash,
		OperatorSetId: set.Id,
		UtxoIds:       proposedUtxos,
	})

	logger.WithFields(logger.Fields{
		"wid":    common.Shorten(wid.String(), 6),
		"amount": amountSats,
		"inputs": len(proposedUtxos),
	}).Info("withdrawal requested")
	return wid, nil
}

// SubmitSignature records one operator approval. The signature covers the
// 5-field approval digest, so a valid signature is itself proof the
// operator saw the committed outputs. Crossing the threshold moves the
// withdrawal to ready; when settlement bytes accompany the crossing call,
// the withdrawal finalizes in the same transition.
func (l *BridgeLedger) SubmitSignature(wid ethcommon.Hash, expiry int64, sig []byte, settlement []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.db.GetWithdrawal(wid)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if w == nil {
		return ErrWithdrawalUnknown
	}
	if w.Status != StatusPending && w.Status != StatusReady {
		return ErrWithdrawalWrongState
	}
	now := l.cfg.Now()
	if now > w.Deadline {
		return ErrDeadlineElapsed
	}
	if now > expiry {
		return ErrExpiryElapsed
	}

	set, err := l.db.GetOperatorSet(w.OperatorSetId)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if set == nil {
		return ErrOperatorSetUnknown
	}

	// an empty signature carries no approval; it only attaches
	// settlement bytes to a withdrawal that already crossed the
	// threshold
	if len(sig) == 0 {
		if w.SignatureCount < set.Threshold {
			return ErrBelowThreshold
		}
		if len(settlement) == 0 {
			return nil
		}
		return l.finalize(w, settlement)
	}

	digest := ApprovalDigest(DomainSeparator(l.cfg), wid, w.OutputsHash, w.Version, expiry, w.OperatorSetId)
	operator, err := RecoverApprover(digest, sig)
	if err != nil {
		return err
	}
	idx := set.IndexOf(operator)
	if idx < 0 {
		return ErrSignerNotMember
	}
	if w.SignatureBitmap&(uint64(1)<<uint(idx)) != 0 {
		return ErrAlreadySigned
	}

	w.SignatureBitmap |= uint64(1) << uint(idx)
	w.SignatureCount++
	crossed := w.Status == StatusPending && w.SignatureCount >= set.Threshold
	if crossed {
		w.Status = StatusReady
	}
	if err := l.db.UpdateWithdrawalSignatures(wid, w.SignatureBitmap, w.SignatureCount, w.Status); err != nil {
		return errors.Join(ErrStorage, err)
	}

	l.publisher.NotifySignature(record.SignatureSubmitted{
		WithdrawalId: wid,
		Operator:     operator,
		MemberIndex:  idx,
		Count:        w.SignatureCount,
	})
	if crossed {
		l.publisher.NotifyReady(record.WithdrawalReady{
			WithdrawalId: wid,
			Count:        w.SignatureCount,
		})
	}

	if w.SignatureCount >= set.Threshold && len(settlement) > 0 {
		return l.finalize(w, settlement)
	}
	return nil
}

// FinalizeByApprovals settles a withdrawal from a batch of approval
// signatures in one call. The caller restates the commitment it believes
// it is finalizing; any drift from the stored withdrawal rejects before a
// single signature is checked. signatureBitmap declares which members
// signed, and signatures must follow its set bits in ascending member
// index; a signature landing on the wrong bit fails the whole batch. On
// any reject the stored withdrawal is untouched.
func (l *BridgeLedger) FinalizeByApprovals(wid, outputsHash ethcommon.Hash, version uint8, expiry int64, operatorSetId ethcommon.Hash, signatureBitmap uint64, sigs [][]byte, settlement []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.db.GetWithdrawal(wid)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if w == nil {
		return ErrWithdrawalUnknown
	}
	if w.Status != StatusPending && w.Status != StatusReady {
		return ErrWithdrawalWrongState
	}
	if outputsHash != w.OutputsHash || version != w.Version || operatorSetId != w.OperatorSetId {
		return ErrCommitmentMismatch
	}
	now := l.cfg.Now()
	if now > w.Deadline {
		return ErrDeadlineElapsed
	}
	if now > expiry {
		return ErrExpiryElapsed
	}

	set, err := l.db.GetOperatorSet(w.OperatorSetId)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if set == nil {
		return ErrOperatorSetUnknown
	}

	digest := ApprovalDigest(DomainSeparator(l.cfg), wid, w.OutputsHash, w.Version, expiry, w.OperatorSetId)
	count := 0
	sigIdx := 0
	for idx := 0; idx < len(set.Members); idx++ {
		if signatureBitmap&(uint64(1)<<uint(idx)) == 0 {
			continue
		}
		if sigIdx >= len(sigs) {
			return ErrBelowThreshold
		}
		operator, err := RecoverApprover(digest, sigs[sigIdx])
		if err != nil {
			return err
		}
		got := set.IndexOf(operator)
		if got < 0 {
			return ErrSignerNotMember
		}
		if got != idx {
			return ErrBitmapMismatch
		}
		sigIdx++
		w.SignatureBitmap |= uint64(1) << uint(idx)
		count++
		if count >= set.Threshold {
			break
		}
	}
	if count < set.Threshold {
		return ErrBelowThreshold
	}
	w.SignatureCount = count

	// nothing persisted yet: a threshold batch whose settlement fails
	// the policy or loses an input race leaves the withdrawal Pending
	// and still cancelable
	return l.finalize(w, settlement)
}

// finalize atomically settles a withdrawal that has its threshold of
// signatures in memory: verify the settlement transaction against the
// committed policy, then in one transaction mark every input spent, record
// the terminal state and burn the escrowed funds. A UTXO claimed by a
// faster withdrawal fails the write-once spent flag and rolls the whole
// settlement back, so no input is ever stranded half-spent. Callers hold
// the ledger mutex.
func (l *BridgeLedger) finalize(w *Withdrawal, settlement []byte) error {
	if err := l.verifySettlementOutputs(w, settlement); err != nil {
		return err
	}
	settlementTxid := common.DoubleSHA256(settlement)

	err := l.db.WithTx(func(tx *sql.Tx) error {
		for _, id := range w.UtxoIds {
			if err := l.db.MarkUtxoSpent(tx, id, w.Id); err != nil {
				return err
			}
		}
		if err := l.db.UpdateWithdrawalSignaturesTx(tx, w.Id, w.SignatureBitmap, w.SignatureCount, StatusFinalized); err != nil {
			return errors.Join(ErrStorage, err)
		}
		if err := l.db.SetWithdrawalFinalized(tx, w.Id, settlementTxid); err != nil {
			return errors.Join(ErrStorage, err)
		}
		return l.tokens.Burn(satsToBig(w.AmountSats + w.FeeSats))
	})
	if err != nil {
		return err
	}
	w.Status = StatusFinalized
	w.SettlementTxid = settlementTxid

	for _, id := range w.UtxoIds {
		l.publisher.NotifyUtxoSpent(record.UtxoSpent{
			UtxoId:       id,
			WithdrawalId: w.Id,
		})
	}
	l.publisher.NotifySettlement(record.SettlementReady{
		WithdrawalId:   w.Id,
		SettlementTxid: settlementTxid,
		RawTx:          settlement,
	})

	logger.WithFields(logger.Fields{
		"wid":  common.Shorten(w.Id.String(), 6),
		"txid": common.Shorten(common.Prepend0xPrefix(common.ByteSliceToPureHexStr(settlementTxid[:])), 6),
	}).Info("withdrawal finalized")
	return nil
}

// CancelWithdraw aborts a pending withdrawal and refunds the escrow. The
// requester may cancel any time; anyone may cancel once the deadline has
// elapsed, which keeps funds from being stranded by absent operators.
// Only Pending qualifies: past the threshold the operators may already be
// holding a spendable settlement, and refunding then would pay twice.
func (l *BridgeLedger) CancelWithdraw(caller ethcommon.Address, wid ethcommon.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.db.GetWithdrawal(wid)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if w == nil {
		return ErrWithdrawalUnknown
	}
	if w.Status != StatusPending {
		return ErrWithdrawalWrongState
	}
	if caller != w.Requester && l.cfg.Now() <= w.Deadline {
		return ErrCancelNotAllowed
	}

	refund := w.AmountSats + w.FeeSats
	if err := l.tokens.Unlock(w.Requester, satsToBig(refund)); err != nil {
		return err
	}
	if err := l.db.SetWithdrawalStatus(wid, StatusCanceled); err != nil {
		return errors.Join(ErrStorage, err)
	}

	l.publisher.NotifyCanceled(record.WithdrawalCanceled{
		WithdrawalId: wid,
		Refunded:     refund,
	})

	logger.WithFields(logger.Fields{
		"wid":    common.Shorten(wid.String(), 6),
		"refund": refund,
	}).Info("withdrawal canceled")
	return nil
}
