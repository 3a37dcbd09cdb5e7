package watcher

import (
	"context"
	"errors"
	"sync"

	"github.com/1sixtech/mojave-bridge-go/headerrelay"
)

// SimulatedBroadcaster records broadcasts in memory and can be told to
// fail the next n attempts.
type SimulatedBroadcaster struct {
	mu        sync.Mutex
	broadcast [][]byte
	known     map[[32]byte]bool
	failNext  int
}

func NewSimulatedBroadcaster() *SimulatedBroadcaster {
	return &SimulatedBroadcaster{known: make(map[[32]byte]bool)}
}

func (s *SimulatedBroadcaster) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *SimulatedBroadcaster) Broadcast(ctx context.Context, rawTx []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return errors.New("simulated broadcast failure")
	}
	s.broadcast = append(s.broadcast, rawTx)
	return nil
}

// MarkKnown makes Confirm answer true for a txid.
func (s *SimulatedBroadcaster) MarkKnown(txid [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[txid] = true
}

func (s *SimulatedBroadcaster) Confirm(ctx context.Context, txid [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[txid], nil
}

func (s *SimulatedBroadcaster) Broadcasts() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.broadcast...)
}

// SimulatedHeaderSource serves headers from a SimChain.
type SimulatedHeaderSource struct {
	Chain *headerrelay.SimChain
}

func (s *SimulatedHeaderSource) BestHeight(ctx context.Context) (int64, error) {
	return int64(s.Chain.Tip().Height), nil
}

func (s *SimulatedHeaderSource) RawHeader(ctx context.Context, height int64) ([]byte, error) {
	base := int64(s.Chain.Headers[0].Height)
	idx := height - base
	if idx < 0 || idx >= int64(len(s.Chain.Headers)) {
		return nil, errors.New("height out of range")
	}
	return s.Chain.Headers[idx].Raw, nil
}
