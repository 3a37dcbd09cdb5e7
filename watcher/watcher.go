package watcher

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/headerrelay"
	"github.com/1sixtech/mojave-bridge-go/record"
)

// Broadcaster pushes raw settlement transactions to the bitcoin network.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) error
	Confirm(ctx context.Context, txid [32]byte) (bool, error)
}

// HeaderSource reads headers from a bitcoin node.
type HeaderSource interface {
	BestHeight(ctx context.Context) (int64, error)
	RawHeader(ctx context.Context, height int64) ([]byte, error)
}

type Config struct {
	// PollInterval paces header sync and pending-settlement re-checks.
	PollInterval time.Duration
	// MaxBroadcastRetries bounds re-broadcast attempts per settlement.
	MaxBroadcastRetries int
}

type pendingSettlement struct {
	rawTx   []byte
	txid    [32]byte
	retries int
}

// Watcher is the bridge's bitcoin-facing worker: it feeds node headers to
// the relay and pushes finalized settlements onto the network, retrying
// until the node accepts them.
type Watcher struct {
	cfg         *Config
	broadcaster Broadcaster
	headers     HeaderSource
	relay       *headerrelay.Relay

	settlements chan record.SettlementReady
	pending     map[[32]byte]*pendingSettlement
}

func New(cfg *Config, broadcaster Broadcaster, headers HeaderSource, relay *headerrelay.Relay) *Watcher {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxBroadcastRetries == 0 {
		cfg.MaxBroadcastRetries = 10
	}
	return &Watcher{
		cfg:         cfg,
		broadcaster: broadcaster,
		headers:     headers,
		relay:       relay,
		settlements: make(chan record.SettlementReady, 16),
		pending:     make(map[[32]byte]*pendingSettlement),
	}
}

// Subscribe attaches the watcher to the ledger's publisher.
func (w *Watcher) Subscribe(pub *record.Publisher) {
	pub.RegisterSettlementObserver(w.settlements)
}

// Run loops until the context ends.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-w.settlements:
			w.handleSettlement(ctx, r)
		case <-ticker.C:
			if err := w.SyncHeaders(ctx); err != nil {
				logger.WithError(err).Error("watcher: header sync failed")
			}
			w.retryPending(ctx)
		}
	}
}

func (w *Watcher) handleSettlement(ctx context.Context, r record.SettlementReady) {
	err := w.broadcaster.Broadcast(ctx, r.RawTx)
	if err != nil {
		logger.WithField("wid", common.Shorten(r.WithdrawalId.String(), 6)).
			WithError(err).Warn("watcher: broadcast failed, queued for retry")
		w.pending[r.SettlementTxid] = &pendingSettlement{rawTx: r.RawTx, txid: r.SettlementTxid}
		return
	}
	logger.WithFields(logger.Fields{
		"wid":  common.Shorten(r.WithdrawalId.String(), 6),
		"txid": common.Shorten(common.Prepend0xPrefix(common.ByteSliceToPureHexStr(r.SettlementTxid[:])), 6),
	}).Info("watcher: settlement broadcast")
}

func (w *Watcher) retryPending(ctx context.Context) {
	for txid, p := range w.pending {
		known, err := w.broadcaster.Confirm(ctx, txid)
		if err == nil && known {
			delete(w.pending, txid)
			continue
		}

		p.retries++
		if p.retries > w.cfg.MaxBroadcastRetries {
			logger.WithField("txid", common.Shorten(common.Prepend0xPrefix(common.ByteSliceToPureHexStr(txid[:])), 6)).
				Error("watcher: giving up on settlement broadcast")
			delete(w.pending, txid)
			continue
		}
		if err := w.broadcaster.Broadcast(ctx, p.rawTx); err != nil {
			logger.WithError(err).Warn("watcher: re-broadcast failed")
		}
	}
}

// SyncHeaders feeds every node header above the relay tip to the relay.
// With no tip yet, the node's best header bootstraps the relay.
func (w *Watcher) SyncHeaders(ctx context.Context) error {
	best, err := w.headers.BestHeight(ctx)
	if err != nil {
		return err
	}

	tip, err := w.relay.Tip()
	if err != nil {
		return err
	}

	from := best
	if tip != nil {
		if int64(tip.BestHeight) >= best {
			return nil
		}
		from = int64(tip.BestHeight) + 1
	}

	for height := from; height <= best; height++ {
		raw, err := w.headers.RawHeader(ctx, height)
		if err != nil {
			return err
		}
		if err := w.relay.SubmitHeader(raw, uint64(height)); err != nil {
			// duplicates happen on overlap after restart; anything else
			// stops the batch
			if errors.Is(err, headerrelay.ErrHeaderDuplicate) {
				continue
			}
			return err
		}
	}
	return nil
}

// PendingCount exposes the retry queue size for the reporter.
func (w *Watcher) PendingCount() int {
	return len(w.pending)
}
