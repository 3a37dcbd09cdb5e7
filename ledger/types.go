package ledger

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/1sixtech/mojave-bridge-go/common"
)

// UtxoSource tells where a registered output came from. It is set exactly
// once at registration.
type UtxoSource string

const (
	SourceNone       UtxoSource = "none"
	SourceDeposit    UtxoSource = "deposit"
	SourceChange     UtxoSource = "change"
	SourceCollateral UtxoSource = "collateral"
)

// UtxoRecord tracks one bridge-controlled bitcoin output. The spent flag is
// write-once false to true, never reset.
type UtxoRecord struct {
	Id         ethcommon.Hash
	Txid       [32]byte // display byte order
	Vout       uint32
	AmountSats uint64
	Source     UtxoSource
	Spent      bool
	SpentIn    ethcommon.Hash // withdrawal id, zero while unspent
}

// UtxoId derives the registry key from an outpoint.
func UtxoId(txid [32]byte, vout uint32) ethcommon.Hash {
	var voutBE [4]byte
	binary.BigEndian.PutUint32(voutBE[:], vout)
	return crypto.Keccak256Hash(txid[:], voutBE[:])
}

type WithdrawalStatus string

const (
	StatusPending   WithdrawalStatus = "pending"
	StatusReady     WithdrawalStatus = "ready"
	StatusFinalized WithdrawalStatus = "finalized"
	StatusCanceled  WithdrawalStatus = "canceled"
)

// Withdrawal is one request to move wrapped funds back to bitcoin.
// OutputsHash, Version and OperatorSetId are immutable once set at creation.
type Withdrawal struct {
	Id             ethcommon.Hash
	Requester      ethcommon.Address
	AmountSats     uint64
	DestScript     []byte
	Deadline       int64 // unix seconds
	OutputsHash    ethcommon.Hash
	Version        uint8
	OperatorSetId  ethcommon.Hash
	FeeSats        uint64
	AnchorRequired bool
	Status         WithdrawalStatus

	SignatureBitmap uint64
	SignatureCount  int

	UtxoIds        []ethcommon.Hash
	TotalInputSats uint64

	SettlementTxid [32]byte // internal byte order, zero until finalized
}

func (w *Withdrawal) String() string {
	return fmt.Sprintf("Withdrawal { Id: %s, Requester: %s, Amount: %d, Status: %s, Sigs: %d (bitmap %016x) }",
		common.Shorten(w.Id.String(), 6), w.Requester.String(), w.AmountSats,
		w.Status, w.SignatureCount, w.SignatureBitmap)
}

func (w *Withdrawal) Clone() *Withdrawal {
	clone := *w
	clone.DestScript = append([]byte(nil), w.DestScript...)
	clone.UtxoIds = append([]ethcommon.Hash(nil), w.UtxoIds...)
	return &clone
}

// MaxOperators bounds the signature bitmap.
const MaxOperators = 64

// OperatorSet is a fixed threshold group. Member order fixes the bitmap
// bit positions. Only one set accepts new withdrawals at a time, but old
// sets remain valid for withdrawals snapshotted against them.
type OperatorSet struct {
	Id        ethcommon.Hash
	Members   []ethcommon.Address
	Threshold int
	Active    bool
}

// OperatorSetId derives the set identifier from its membership.
func OperatorSetId(members []ethcommon.Address, threshold int) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(members, uint16(threshold)))
}

// IndexOf returns the member's bitmap position, or -1.
func (s *OperatorSet) IndexOf(addr ethcommon.Address) int {
	for i, m := range s.Members {
		if m == addr {
			return i
		}
	}
	return -1
}

// SPVProof is the wire format of a deposit inclusion proof.
type SPVProof struct {
	RawTx        []byte
	Txid         [32]byte // witness-stripped txid, display byte order
	MerkleBranch [][32]byte
	Index        uint32
	Header       []byte   // 80 bytes
	ExtraHeaders [][]byte // reserved for the bundled-header path, unused
}

// LedgerConfig pins one bridge instance.
type LedgerConfig struct {
	ChainId       *big.Int
	BridgeAddress ethcommon.Address

	// VaultScript is the pkScript deposits must pay.
	VaultScript []byte
	// ChangeScript is where settlement change must return.
	ChangeScript []byte
	// AnchorScript, when AnchorRequired, must appear among settlement outputs.
	AnchorScript   []byte
	AnchorRequired bool

	// FeeSats is committed into outputsHash; FeeBufferSats pads the input
	// sum requirement at request time.
	FeeSats       uint64
	FeeBufferSats uint64

	MinConfirmations uint64
	PolicyVersion    uint8

	// Now is the ledger's visible clock; defaults to wall time.
	Now func() int64
}
