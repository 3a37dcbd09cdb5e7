package record

/*
Records are the bridge ledger's only outbound surface. External actors
(indexer, operator tooling, settlement watcher) consume them in emission
order; they never mutate ledger state directly.
*/

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// UtxoSource labels where a registered UTXO came from.
type UtxoSource string

const (
	SourceDeposit    UtxoSource = "deposit"
	SourceChange     UtxoSource = "change"
	SourceCollateral UtxoSource = "collateral"
)

// DepositFinalized is emitted once a deposit claim minted wrapped funds.
type DepositFinalized struct {
	Seq        uint64
	Txid       [32]byte // display byte order
	Vout       uint32
	Recipient  ethcommon.Address
	AmountSats uint64
}

// UtxoRegistered is emitted when an output enters the bridge UTXO registry.
type UtxoRegistered struct {
	Seq        uint64
	UtxoId     ethcommon.Hash
	Txid       [32]byte
	Vout       uint32
	AmountSats uint64
	Source     UtxoSource
}

// UtxoSpent is emitted when a withdrawal finalization marks an input spent.
type UtxoSpent struct {
	Seq          uint64
	UtxoId       ethcommon.Hash
	WithdrawalId ethcommon.Hash
}

// WithdrawalInitiated carries everything needed to reconstruct the
// settlement transaction template.
type WithdrawalInitiated struct {
	Seq           uint64
	WithdrawalId  ethcommon.Hash
	Requester     ethcommon.Address
	AmountSats    uint64
	DestScript    []byte
	Deadline      int64
	OutputsHash   ethcommon.Hash
	OperatorSetId ethcommon.Hash
	UtxoIds       []ethcommon.Hash
}

// SignatureSubmitted is emitted for each accepted operator approval.
type SignatureSubmitted struct {
	Seq          uint64
	WithdrawalId ethcommon.Hash
	Operator     ethcommon.Address
	MemberIndex  int
	Count        int
}

// WithdrawalReady is emitted once the signature threshold is reached.
type WithdrawalReady struct {
	Seq          uint64
	WithdrawalId ethcommon.Hash
	Count        int
}

// SettlementReady carries the raw settlement transaction for broadcast.
type SettlementReady struct {
	Seq            uint64
	WithdrawalId   ethcommon.Hash
	SettlementTxid [32]byte // internal byte order (doubleSHA256 of the bytes)
	RawTx          []byte
}

// WithdrawalCanceled tells the indexer to release proposed inputs.
type WithdrawalCanceled struct {
	Seq          uint64
	WithdrawalId ethcommon.Hash
	Refunded     uint64
}
