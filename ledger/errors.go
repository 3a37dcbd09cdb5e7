package ledger

import "errors"

// Category buckets every reject so operator and indexer tooling can decide
// between resubmit, wait and alert without string matching.
type Category string

const (
	CategoryMalformedInput        Category = "malformed_input"
	CategoryConsensusViolation    Category = "consensus_violation"
	CategoryAuthorizationFailure  Category = "authorization_failure"
	CategoryStateConflict         Category = "state_conflict"
	CategoryResourceInsufficiency Category = "resource_insufficiency"
	CategoryInternal              Category = "internal"
)

var (
	// malformed input
	ErrProofHeaderInvalid = errors.New("proof header is not 80 bytes")
	ErrSignatureLength    = errors.New("signature must be 65 bytes")
	ErrDestScriptEmpty    = errors.New("destination script is empty")
	ErrAmountZero         = errors.New("amount must be positive")

	// consensus violations
	ErrInsufficientConfirmations = errors.New("insufficient confirmations")
	ErrMerkleMismatch            = errors.New("merkle proof does not match header root")
	ErrVaultOutputMissing        = errors.New("no output pays the vault script the exact amount")
	ErrEnvelopeMismatch          = errors.New("no OP_RETURN output matches the envelope hash")

	// authorization failures
	ErrSignerNotMember   = errors.New("recovered signer is not in the operator set")
	ErrAlreadySigned     = errors.New("operator already signed")
	ErrBelowThreshold    = errors.New("signature count below threshold")
	ErrBitmapMismatch    = errors.New("signature does not match bitmap position")
	ErrOperatorSetClosed = errors.New("operator set has no members or bad threshold")

	// state conflicts
	ErrDuplicateDeposit     = errors.New("outpoint already processed")
	ErrWithdrawalUnknown    = errors.New("withdrawal not found")
	ErrWithdrawalWrongState = errors.New("withdrawal in wrong state for this operation")
	ErrUtxoUnknown          = errors.New("utxo not registered")
	ErrUtxoSpent            = errors.New("utxo already spent")
	ErrUtxoSourceInvalid    = errors.New("utxo source not spendable")
	ErrUtxoDuplicate        = errors.New("utxo already registered")
	ErrDeadlineElapsed      = errors.New("withdrawal deadline elapsed")
	ErrExpiryElapsed        = errors.New("approval expiry elapsed")
	ErrCommitmentMismatch   = errors.New("outputsHash/version/operatorSetId do not match stored withdrawal")
	ErrCancelNotAllowed     = errors.New("only the requester may cancel before the deadline")
	ErrPolicyViolated       = errors.New("settlement outputs violate the committed policy")
	ErrOperatorSetUnknown   = errors.New("operator set not found")
	ErrNoActiveOperatorSet  = errors.New("no active operator set")

	// resource insufficiency
	ErrInputSumTooLow = errors.New("proposed utxo sum below amount plus fee buffer")

	// internal
	ErrStorage = errors.New("ledger storage failure")
)

// Categorize maps a reject to its disposition bucket.
func Categorize(err error) Category {
	switch {
	case errors.Is(err, ErrProofHeaderInvalid),
		errors.Is(err, ErrSignatureLength),
		errors.Is(err, ErrDestScriptEmpty),
		errors.Is(err, ErrAmountZero):
		return CategoryMalformedInput
	case errors.Is(err, ErrInsufficientConfirmations),
		errors.Is(err, ErrMerkleMismatch),
		errors.Is(err, ErrVaultOutputMissing),
		errors.Is(err, ErrEnvelopeMismatch):
		return CategoryConsensusViolation
	case errors.Is(err, ErrSignerNotMember),
		errors.Is(err, ErrAlreadySigned),
		errors.Is(err, ErrBelowThreshold),
		errors.Is(err, ErrBitmapMismatch),
		errors.Is(err, ErrOperatorSetClosed):
		return CategoryAuthorizationFailure
	case errors.Is(err, ErrInputSumTooLow):
		return CategoryResourceInsufficiency
	case errors.Is(err, ErrStorage):
		return CategoryInternal
	default:
		return CategoryStateConflict
	}
}
