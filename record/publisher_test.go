package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1sixtech/mojave-bridge-go/common"
)

func TestPublisherSequenceOrder(t *testing.T) {
	p := NewPublisher()
	regCh := make(chan UtxoRegistered, 8)
	spentCh := make(chan UtxoSpent, 8)
	p.RegisterUtxoRegisteredObserver(regCh)
	p.RegisterUtxoSpentObserver(spentCh)

	p.NotifyUtxoRegistered(UtxoRegistered{UtxoId: common.RandBytes32()})
	p.NotifyUtxoSpent(UtxoSpent{UtxoId: common.RandBytes32()})
	p.NotifyUtxoRegistered(UtxoRegistered{UtxoId: common.RandBytes32()})

	first := <-regCh
	second := <-spentCh
	third := <-regCh
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(3), third.Seq)
}

func TestPublisherFanOut(t *testing.T) {
	p := NewPublisher()
	a := make(chan SettlementReady, 1)
	b := make(chan SettlementReady, 1)
	p.RegisterSettlementObserver(a)
	p.RegisterSettlementObserver(b)

	wid := common.RandBytes32()
	p.NotifySettlement(SettlementReady{WithdrawalId: wid, RawTx: []byte{1, 2, 3}})

	ra := <-a
	rb := <-b
	require.Equal(t, ra, rb)
	assert.Equal(t, [32]byte(wid), [32]byte(ra.WithdrawalId))
	assert.Equal(t, []byte{1, 2, 3}, ra.RawTx)
}

func TestPublisherNoObserversIsNoop(t *testing.T) {
	p := NewPublisher()
	// must not block or panic
	p.NotifyDeposit(DepositFinalized{})
	p.NotifyCanceled(WithdrawalCanceled{})
}
