package record

import (
	"sync"
)

// Publisher is a concurrent-safe fan-out of bridge records. Register
// observer channels before the ledger starts mutating; the ledger appends a
// record after each successful mutation. Sends are in sequence order and
// block when an observer's buffer is full, so observers must keep draining.
type Publisher struct {
	mu  sync.Mutex
	seq uint64

	depositObservers    []chan DepositFinalized
	registeredObservers []chan UtxoRegistered
	spentObservers      []chan UtxoSpent
	initiatedObservers  []chan WithdrawalInitiated
	signatureObservers  []chan SignatureSubmitted
	readyObservers      []chan WithdrawalReady
	settlementObservers []chan SettlementReady
	canceledObservers   []chan WithdrawalCanceled
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) nextSeq() uint64 {
	p.seq++
	return p.seq
}

func (p *Publisher) RegisterDepositObserver(ch chan DepositFinalized) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.depositObservers = append(p.depositObservers, ch)
}

func (p *Publisher) RegisterUtxoRegisteredObserver(ch chan UtxoRegistered) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registeredObservers = append(p.registeredObservers, ch)
}

func (p *Publisher) RegisterUtxoSpentObserver(ch chan UtxoSpent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spentObservers = append(p.spentObservers, ch)
}

func (p *Publisher) RegisterWithdrawalInitiatedObserver(ch chan WithdrawalInitiated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initiatedObservers = append(p.initiatedObservers, ch)
}

func (p *Publisher) RegisterSignatureObserver(ch chan SignatureSubmitted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signatureObservers = append(p.signatureObservers, ch)
}

func (p *Publisher) RegisterReadyObserver(ch chan WithdrawalReady) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readyObservers = append(p.readyObservers, ch)
}

func (p *Publisher) RegisterSettlementObserver(ch chan SettlementReady) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settlementObservers = append(p.settlementObservers, ch)
}

func (p *Publisher) RegisterCanceledObserver(ch chan WithdrawalCanceled) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceledObservers = append(p.canceledObservers, ch)
}

func (p *Publisher) NotifyDeposit(r DepositFinalized) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.depositObservers {
		ch <- r
	}
}

func (p *Publisher) NotifyUtxoRegistered(r UtxoRegistered) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.registeredObservers {
		ch <- r
	}
}

func (p *Publisher) NotifyUtxoSpent(r UtxoSpent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.spentObservers {
		ch <- r
	}
}

func (p *Publisher) NotifyWithdrawalInitiated(r WithdrawalInitiated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.initiatedObservers {
		ch <- r
	}
}

func (p *Publisher) NotifySignature(r SignatureSubmitted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.signatureObservers {
		ch <- r
	}
}

func (p *Publisher) NotifyReady(r WithdrawalReady) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.readyObservers {
		ch <- r
	}
}

func (p *Publisher) NotifySettlement(r SettlementReady) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.settlementObservers {
		ch <- r
	}
}

func (p *Publisher) NotifyCanceled(r WithdrawalCanceled) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.Seq = p.nextSeq()
	for _, ch := range p.canceledObservers {
		ch <- r
	}
}
