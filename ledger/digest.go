package ledger

import (
	"crypto/ecdsa"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/1sixtech/mojave-bridge-go/common"
)

// protocol constants bound into the approval domain separator
const (
	protocolName    = "MOJAVE_BRIDGE"
	protocolVersion = uint8(1)
)

// DomainSeparator binds approval signatures to one protocol, version,
// chain and ledger instance. A signature produced for another deployment
// can never be replayed here.
func DomainSeparator(cfg *LedgerConfig) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		protocolName,
		protocolVersion,
		cfg.ChainId,
		cfg.BridgeAddress,
	))
}

// ApprovalDigest is the 5-field message operators sign to approve a
// withdrawal: (wid, outputsHash, version, expiry, operatorSetId) under the
// domain separator.
func ApprovalDigest(domain ethcommon.Hash, wid, outputsHash ethcommon.Hash, version uint8, expiry int64, operatorSetId ethcommon.Hash) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		domain,
		wid,
		outputsHash,
		version,
		uint64(expiry),
		operatorSetId,
	))
}

// RecoverApprover recovers the signing operator address from a 65-byte
// [R || S || V] signature over the approval digest.
func RecoverApprover(digest ethcommon.Hash, sig []byte) (ethcommon.Address, error) {
	if len(sig) != 65 {
		return ethcommon.Address{}, ErrSignatureLength
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignApproval produces an operator approval signature. Operators run this
// off-ledger; it lives here so tests and tooling share one implementation.
func SignApproval(digest ethcommon.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest[:], key)
}
