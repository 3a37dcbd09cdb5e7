package tokenledger

/*
The wrapped-token balance ledger is an external collaborator: the bridge
only mints, burns and moves balances into/out of its own custody. Every
method must propagate failure so the surrounding bridge operation aborts
cleanly instead of silently no-opping.
*/

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrAmountInvalid       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientCustody = errors.New("insufficient custody balance")
)

type TokenLedger interface {
	// Mint credits freshly wrapped funds to a recipient.
	Mint(to ethcommon.Address, amount *big.Int) error

	// Lock moves a user balance into bridge custody.
	Lock(from ethcommon.Address, amount *big.Int) error

	// Unlock refunds a custodied balance back to a user.
	Unlock(to ethcommon.Address, amount *big.Int) error

	// Burn destroys a custodied balance for good.
	Burn(amount *big.Int) error

	// BalanceOf reads a user's free balance.
	BalanceOf(addr ethcommon.Address) (*big.Int, error)
}
