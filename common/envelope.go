package common

/*
Defines the deposit envelope a user commits to when sending btc coins to the
bridge vault. The serialized envelope is carried as OP_RETURN data in the
deposit transaction and its hash binds the deposit to one bridge instance,
chain, recipient and amount.
*/

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// serialized envelope length: tag(4) + chainId(32) + bridge(20) +
	// recipient(20) + amount(32)
	EnvelopeSize = 108
)

// Fixed 4-byte tag prefixing every envelope.
var EnvelopeTag = [4]byte{'M', 'J', 'B', 'R'}

var (
	ErrEnvelopeSize = errors.New("envelope must be 108 bytes")
	ErrEnvelopeTag  = errors.New("envelope tag mismatch")
)

// DepositEnvelope is the payload pushed in the OP_RETURN output of a
// deposit transaction.
type DepositEnvelope struct {
	ChainId       *big.Int          // ledger chain id, big-endian 32 bytes on the wire
	BridgeAddress ethcommon.Address // bridge ledger instance
	Recipient     ethcommon.Address // wrapped-token receiver
	Amount        *big.Int          // satoshis, big-endian 32 bytes on the wire
}

// Serialize encodes the envelope into its fixed 108-byte wire layout.
func (e *DepositEnvelope) Serialize() []byte {
	out := make([]byte, 0, EnvelopeSize)
	out = append(out, EnvelopeTag[:]...)

	chainId := BigInt2Bytes32(e.ChainId)
	out = append(out, chainId[:]...)
	out = append(out, e.BridgeAddress[:]...)
	out = append(out, e.Recipient[:]...)

	amount := BigInt2Bytes32(e.Amount)
	out = append(out, amount[:]...)
	return out
}

// Hash returns the commitment the bridge ledger verifies deposits against.
func (e *DepositEnvelope) Hash() ethcommon.Hash {
	return crypto.Keccak256Hash(e.Serialize())
}

// DeserializeEnvelope decodes a 108-byte envelope payload.
func DeserializeEnvelope(b []byte) (*DepositEnvelope, error) {
	if len(b) != EnvelopeSize {
		return nil, ErrEnvelopeSize
	}
	if [4]byte(b[0:4]) != EnvelopeTag {
		return nil, ErrEnvelopeTag
	}

	e := &DepositEnvelope{
		ChainId:       new(big.Int).SetBytes(b[4:36]),
		BridgeAddress: ethcommon.BytesToAddress(b[36:56]),
		Recipient:     ethcommon.BytesToAddress(b[56:76]),
		Amount:        new(big.Int).SetBytes(b[76:108]),
	}
	return e, nil
}
