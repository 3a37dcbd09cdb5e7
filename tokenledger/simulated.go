package tokenledger

import (
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// SimulatedTokenLedger is an in-memory TokenLedger used by tests and the
// demo wiring.
type SimulatedTokenLedger struct {
	mu           sync.Mutex
	balances     map[ethcommon.Address]*big.Int
	custody      *big.Int
	failNextMint error
}

func NewSimulatedTokenLedger() *SimulatedTokenLedger {
	return &SimulatedTokenLedger{
		balances: make(map[ethcommon.Address]*big.Int),
		custody:  new(big.Int),
	}
}

func (s *SimulatedTokenLedger) Mint(to ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextMint != nil {
		err := s.failNextMint
		s.failNextMint = nil
		return err
	}
	s.credit(to, amount)
	return nil
}

func (s *SimulatedTokenLedger) Lock(from ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.balance(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	s.custody.Add(s.custody, amount)
	return nil
}

func (s *SimulatedTokenLedger) Unlock(to ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	s.custody.Sub(s.custody, amount)
	s.credit(to, amount)
	return nil
}

func (s *SimulatedTokenLedger) Burn(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	s.custody.Sub(s.custody, amount)
	return nil
}

func (s *SimulatedTokenLedger) BalanceOf(addr ethcommon.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balance(addr)), nil
}

// FailNextMint arms a one-shot mint failure. Test hook, not part of the
// TokenLedger interface.
func (s *SimulatedTokenLedger) FailNextMint(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextMint = err
}

// CustodyBalance is a test hook, not part of the TokenLedger interface.
func (s *SimulatedTokenLedger) CustodyBalance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.custody)
}

func (s *SimulatedTokenLedger) balance(addr ethcommon.Address) *big.Int {
	bal, ok := s.balances[addr]
	if !ok {
		bal = new(big.Int)
		s.balances[addr] = bal
	}
	return bal
}

func (s *SimulatedTokenLedger) credit(addr ethcommon.Address, amount *big.Int) {
	s.balance(addr).Add(s.balance(addr), amount)
}
