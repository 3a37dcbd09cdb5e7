package indexer

// PoolUTXO is the indexer's view of one spendable bridge output. It mirrors
// the ledger registry but carries the soft reservation state (lockup +
// timeout) the ledger deliberately does not track.
type PoolUTXO struct {
	UtxoId  string // 64-character hexadecimal string (no 0x prefix)
	TxID    string // 64-character hexadecimal string, display byte order
	Vout    uint32 // Output index
	Amount  uint64 // Amount in satoshis
	Source  string // deposit / change / collateral
	Seq     uint64 // record sequence at registration, fixes pool age order
	Lockup  bool   // reserved for a pending withdrawal
	Spent   bool   // consumed by a finalized withdrawal, never reset
	Timeout int64  // Unix seconds; lock expires past this point, 0 if untouched
}

// SelectionPolicy picks the coin-selection strategy for Select.
type SelectionPolicy string

const (
	// PolicyLargestFirst minimizes the input count.
	PolicyLargestFirst SelectionPolicy = "largest"
	// PolicySmallestFirst sweeps dust into settlements.
	PolicySmallestFirst SelectionPolicy = "smallest"
	// PolicyOldestFirst spends in registration order.
	PolicyOldestFirst SelectionPolicy = "oldest"
	// PolicyBestFit prefers the single smallest output covering the target,
	// falling back to largest-first accumulation.
	PolicyBestFit SelectionPolicy = "bestfit"
)

// PoolStorage defines the database operations behind the indexer.
type PoolStorage interface {
	// InsertPoolUTXO inserts a new PoolUTXO (duplicates are an error)
	InsertPoolUTXO(u PoolUTXO) error

	// QueryByUtxoId retrieves one PoolUTXO, nil when absent
	QueryByUtxoId(id string) (*PoolUTXO, error)

	// QueryAllUsable selects every UTXO that is neither locked nor spent
	QueryAllUsable() ([]PoolUTXO, error)

	// QueryExpiredAndLocked selects locked UTXOs whose timeout passed t
	QueryExpiredAndLocked(t int64) ([]PoolUTXO, error)

	// SetLockup sets the lockup flag of a PoolUTXO
	SetLockup(id string, lockup bool) error

	// SetTimeout sets the lock expiry timepoint of a PoolUTXO
	SetTimeout(id string, timeout int64) error

	// SetSpent marks a PoolUTXO spent for good
	SetSpent(id string) error

	// SumUsable totals the unlocked, unspent pool
	SumUsable() (uint64, error)
}
