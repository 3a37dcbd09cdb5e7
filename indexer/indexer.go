package indexer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/record"
)

const lockTimeoutDelay int64 = 1800 // half an hour

var (
	ErrPoolInsufficient = errors.New("usable pool does not cover the target amount")
	ErrPolicyUnknown    = errors.New("unknown selection policy")
	ErrUtxoNotInPool    = errors.New("utxo not in pool")
)

// Indexer maintains the off-ledger UTXO pool: it mirrors ledger records
// into its own store, picks inputs for new withdrawals and manages soft
// reservations so concurrent withdrawal proposals do not chase the same
// coins. The reservation is advisory only; the ledger's write-once spent
// flag is the real arbiter.
type Indexer struct {
	backend PoolStorage
	policy  SelectionPolicy

	updateMu sync.Mutex

	// withdrawal id -> locked utxo ids, so cancellations release exactly
	// what the withdrawal proposed
	proposals map[ethcommon.Hash][]string

	registered chan record.UtxoRegistered
	spent      chan record.UtxoSpent
	initiated  chan record.WithdrawalInitiated
	canceled   chan record.WithdrawalCanceled
}

func NewIndexer(backend PoolStorage, policy SelectionPolicy) *Indexer {
	return &Indexer{
		backend:    backend,
		policy:     policy,
		proposals:  make(map[ethcommon.Hash][]string),
		registered: make(chan record.UtxoRegistered, 64),
		spent:      make(chan record.UtxoSpent, 64),
		initiated:  make(chan record.WithdrawalInitiated, 64),
		canceled:   make(chan record.WithdrawalCanceled, 64),
	}
}

// Subscribe attaches the indexer's channels to the ledger's publisher.
// Call before the first ledger operation so no record is missed.
func (ix *Indexer) Subscribe(pub *record.Publisher) {
	pub.RegisterUtxoRegisteredObserver(ix.registered)
	pub.RegisterUtxoSpentObserver(ix.spent)
	pub.RegisterWithdrawalInitiatedObserver(ix.initiated)
	pub.RegisterCanceledObserver(ix.canceled)
}

// Run consumes ledger records until the context ends. Records within one
// channel arrive in emission order; applying them is idempotent enough
// that a restart with a fresh pool rebuilt from the ledger is safe.
func (ix *Indexer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-ix.registered:
			if err := ix.onRegistered(r); err != nil {
				logger.WithField("utxo", common.Shorten(r.UtxoId.String(), 6)).
					WithError(err).Error("indexer: register failed")
			}
		case r := <-ix.spent:
			if err := ix.onSpent(r); err != nil {
				logger.WithField("utxo", common.Shorten(r.UtxoId.String(), 6)).
					WithError(err).Error("indexer: spend failed")
			}
		case r := <-ix.initiated:
			ix.onInitiated(r)
		case r := <-ix.canceled:
			ix.onCanceled(r)
		case <-ticker.C:
			if err := ix.ReleaseByExpire(); err != nil {
				logger.WithError(err).Error("indexer: expiry sweep failed")
			}
		}
	}
}

func (ix *Indexer) onRegistered(r record.UtxoRegistered) error {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()

	id := r.UtxoId.String()[2:]
	existing, err := ix.backend.QueryByUtxoId(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return ix.backend.InsertPoolUTXO(PoolUTXO{
		UtxoId: id,
		TxID:   common.ByteSliceToPureHexStr(r.Txid[:]),
		Vout:   r.Vout,
		Amount: r.AmountSats,
		Source: string(r.Source),
		Seq:    r.Seq,
	})
}

func (ix *Indexer) onSpent(r record.UtxoSpent) error {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()
	delete(ix.proposals, r.WithdrawalId)
	return ix.backend.SetSpent(r.UtxoId.String()[2:])
}

func (ix *Indexer) onInitiated(r record.WithdrawalInitiated) {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()

	timeout := r.Deadline
	ids := make([]string, 0, len(r.UtxoIds))
	for _, utxoId := range r.UtxoIds {
		id := utxoId.String()[2:]
		if err := ix.backend.SetLockup(id, true); err != nil {
			logger.WithError(err).Error("indexer: lock failed")
			continue
		}
		if err := ix.backend.SetTimeout(id, timeout); err != nil {
			logger.WithError(err).Error("indexer: timeout failed")
		}
		ids = append(ids, id)
	}
	ix.proposals[r.WithdrawalId] = ids
}

func (ix *Indexer) onCanceled(r record.WithdrawalCanceled) {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()

	for _, id := range ix.proposals[r.WithdrawalId] {
		if err := ix.backend.SetLockup(id, false); err != nil {
			logger.WithError(err).Error("indexer: unlock failed")
			continue
		}
		if err := ix.backend.SetTimeout(id, 0); err != nil {
			logger.WithError(err).Error("indexer: timeout reset failed")
		}
	}
	delete(ix.proposals, r.WithdrawalId)
}

// Select picks usable UTXOs summing to at least targetSats under the given
// policy, without locking them. Pass policy "" to use the indexer default.
func (ix *Indexer) Select(targetSats uint64, policy SelectionPolicy) ([]PoolUTXO, error) {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()
	return ix.selectLocked(targetSats, policy)
}

// ChooseAndLock selects and reserves UTXOs for a withdrawal proposal. The
// reservation expires on its own if the withdrawal never materializes.
func (ix *Indexer) ChooseAndLock(targetSats uint64, policy SelectionPolicy) ([]PoolUTXO, error) {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()

	utxos, err := ix.selectLocked(targetSats, policy)
	if err != nil {
		return nil, err
	}

	timepoint := time.Now().Unix() + lockTimeoutDelay
	for i, u := range utxos {
		if err := ix.backend.SetLockup(u.UtxoId, true); err != nil {
			return nil, err
		}
		if err := ix.backend.SetTimeout(u.UtxoId, timepoint); err != nil {
			return nil, err
		}
		utxos[i].Lockup = true
		utxos[i].Timeout = timepoint
	}
	return utxos, nil
}

func (ix *Indexer) selectLocked(targetSats uint64, policy SelectionPolicy) ([]PoolUTXO, error) {
	if policy == "" {
		policy = ix.policy
	}

	usable, err := ix.backend.QueryAllUsable()
	if err != nil {
		return nil, err
	}

	switch policy {
	case PolicyLargestFirst:
		sort.Slice(usable, func(i, j int) bool { return usable[i].Amount > usable[j].Amount })
	case PolicySmallestFirst:
		sort.Slice(usable, func(i, j int) bool { return usable[i].Amount < usable[j].Amount })
	case PolicyOldestFirst:
		sort.Slice(usable, func(i, j int) bool { return usable[i].Seq < usable[j].Seq })
	case PolicyBestFit:
		if single := bestFitSingle(usable, targetSats); single != nil {
			return []PoolUTXO{*single}, nil
		}
		sort.Slice(usable, func(i, j int) bool { return usable[i].Amount > usable[j].Amount })
	default:
		return nil, ErrPolicyUnknown
	}

	var picked []PoolUTXO
	var sum uint64
	for _, u := range usable {
		picked = append(picked, u)
		sum += u.Amount
		if sum >= targetSats {
			return picked, nil
		}
	}
	return nil, ErrPoolInsufficient
}

// bestFitSingle finds the smallest single UTXO covering the target.
func bestFitSingle(usable []PoolUTXO, targetSats uint64) *PoolUTXO {
	var best *PoolUTXO
	for i := range usable {
		u := &usable[i]
		if u.Amount < targetSats {
			continue
		}
		if best == nil || u.Amount < best.Amount {
			best = u
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// ReleaseByExpire unlocks every reservation whose timeout has passed.
func (ix *Indexer) ReleaseByExpire() error {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()

	utxos, err := ix.backend.QueryExpiredAndLocked(time.Now().Unix())
	if err != nil {
		return err
	}
	for _, u := range utxos {
		if err := ix.backend.SetLockup(u.UtxoId, false); err != nil {
			return err
		}
		if err := ix.backend.SetTimeout(u.UtxoId, 0); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseByCommand unlocks one reservation explicitly.
func (ix *Indexer) ReleaseByCommand(utxoId ethcommon.Hash) error {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()

	id := utxoId.String()[2:]
	u, err := ix.backend.QueryByUtxoId(id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUtxoNotInPool
	}
	if err := ix.backend.SetLockup(id, false); err != nil {
		return err
	}
	return ix.backend.SetTimeout(id, 0)
}

// UsableSum totals the pool available to new withdrawals.
func (ix *Indexer) UsableSum() (uint64, error) {
	ix.updateMu.Lock()
	defer ix.updateMu.Unlock()
	return ix.backend.SumUsable()
}
