package watcher

import (
	"context"
	"database/sql"
	"testing"

	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/1sixtech/mojave-bridge-go/btcparse"
	"github.com/1sixtech/mojave-bridge-go/common"
	"github.com/1sixtech/mojave-bridge-go/headerrelay"
	"github.com/1sixtech/mojave-bridge-go/record"
)

func newTestRelay(t *testing.T) *headerrelay.Relay {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		logger.Fatal(err)
	}
	store, err := headerrelay.NewHeaderSQLiteStorage(db)
	assert.NoError(t, err)
	return headerrelay.NewRelay(&headerrelay.RelayConfig{
		FinalizationDepth: 0,
		MaxTarget:         btcparse.TargetFromBits(headerrelay.RegtestBits),
	}, store)
}

func TestSyncHeadersBootstrapAndCatchUp(t *testing.T) {
	relay := newTestRelay(t)
	chain := headerrelay.NewSimChain(100)
	for i := 0; i < 3; i++ {
		chain.Extend()
	}

	w := New(&Config{}, NewSimulatedBroadcaster(), &SimulatedHeaderSource{Chain: chain}, relay)

	// empty relay bootstraps from the node's best header
	assert.NoError(t, w.SyncHeaders(context.Background()))
	tip, err := relay.Tip()
	assert.NoError(t, err)
	assert.Equal(t, uint64(103), tip.BestHeight)

	// new blocks get picked up incrementally
	chain.Extend()
	chain.Extend()
	assert.NoError(t, w.SyncHeaders(context.Background()))
	tip, _ = relay.Tip()
	assert.Equal(t, uint64(105), tip.BestHeight)

	// already caught up is a no-op
	assert.NoError(t, w.SyncHeaders(context.Background()))
}

func TestHandleSettlementBroadcasts(t *testing.T) {
	relay := newTestRelay(t)
	chain := headerrelay.NewSimChain(0)
	b := NewSimulatedBroadcaster()
	w := New(&Config{}, b, &SimulatedHeaderSource{Chain: chain}, relay)

	rawTx := []byte{0x02, 0x00, 0x00, 0x00}
	w.handleSettlement(context.Background(), record.SettlementReady{
		WithdrawalId:   common.RandBytes32(),
		SettlementTxid: common.DoubleSHA256(rawTx),
		RawTx:          rawTx,
	})

	assert.Equal(t, [][]byte{rawTx}, b.Broadcasts())
	assert.Equal(t, 0, w.PendingCount())
}

func TestSettlementRetryUntilConfirmed(t *testing.T) {
	relay := newTestRelay(t)
	chain := headerrelay.NewSimChain(0)
	b := NewSimulatedBroadcaster()
	w := New(&Config{MaxBroadcastRetries: 3}, b, &SimulatedHeaderSource{Chain: chain}, relay)

	rawTx := []byte{0x02, 0x00, 0x00, 0x00}
	txid := common.DoubleSHA256(rawTx)

	b.FailNext(1)
	w.handleSettlement(context.Background(), record.SettlementReady{
		SettlementTxid: txid,
		RawTx:          rawTx,
	})
	assert.Equal(t, 1, w.PendingCount())
	assert.Empty(t, b.Broadcasts())

	// retry pass re-broadcasts successfully
	w.retryPending(context.Background())
	assert.Equal(t, [][]byte{rawTx}, b.Broadcasts())

	// once the node knows the tx the queue drains
	b.MarkKnown(txid)
	w.retryPending(context.Background())
	assert.Equal(t, 0, w.PendingCount())
}

func TestSettlementGivesUpAfterMaxRetries(t *testing.T) {
	relay := newTestRelay(t)
	chain := headerrelay.NewSimChain(0)
	b := NewSimulatedBroadcaster()
	w := New(&Config{MaxBroadcastRetries: 2}, b, &SimulatedHeaderSource{Chain: chain}, relay)

	rawTx := []byte{0x01}
	b.FailNext(10)
	w.handleSettlement(context.Background(), record.SettlementReady{
		SettlementTxid: common.DoubleSHA256(rawTx),
		RawTx:          rawTx,
	})

	for i := 0; i < 3; i++ {
		w.retryPending(context.Background())
	}
	assert.Equal(t, 0, w.PendingCount())
	assert.Empty(t, b.Broadcasts())
}
