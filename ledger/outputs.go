package ledger

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
)

// OutputsHash is the binding commitment to the exact bitcoin-side output
// layout operators must honor: destination amount and script, change
// policy, anchor requirement, fee and policy version.
func OutputsHash(amountSats uint64, destScript, changeScript []byte, anchorRequired bool, feeSats uint64, version uint8) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		amountSats,
		crypto.Keccak256Hash(destScript),
		crypto.Keccak256Hash(changeScript),
		anchorRequired,
		feeSats,
		version,
	))
}

// verifySettlementOutputs checks a raw settlement transaction against the
// committed policy: the destination receives exactly amountSats, a change
// output pays the configured change script, and the anchor output is
// present when required.
func (l *BridgeLedger) verifySettlementOutputs(w *Withdrawal, rawTx []byte) error {
	outputs, err := btcparse.ScanOutputs(rawTx)
	if err != nil {
		return err
	}

	var destPaid, changePresent, anchorPresent bool
	for _, out := range outputs {
		switch {
		case common.CompareSlices(out.PkScript, w.DestScript) && out.Value == w.AmountSats:
			destPaid = true
		case common.CompareSlices(out.PkScript, l.cfg.ChangeScript):
			changePresent = true
		case common.CompareSlices(out.PkScript, l.cfg.AnchorScript):
			anchorPresent = true
		}
	}

	if !destPaid || !changePresent {
		return ErrPolicyViolated
	}
	if w.AnchorRequired && !anchorPresent {
		return ErrPolicyViolated
	}
	return nil
}
