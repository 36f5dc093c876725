package accounts

import (
	"context"
	"errors"
)

var ErrDuplicateID = errors.New("account id already exists")
var ErrAccountNotFound = errors.New("account not found")

// Account is a ledger participant holding an energy and a credit balance.
// Balances change only through ApplyDelta.
type Account struct {
	ID            string  `json:"user_id"`
	Name          string  `json:"name"`
	EnergyBalance float64 `json:"energy_balance"`
	CreditBalance float64 `json:"credit_balance"`
}

type Accounts interface {
	// Create inserts a new account. Returns ErrDuplicateID if id is taken.
	Create(ctx context.Context, id, name string, energy, credit float64) (Account, error)

	// Get returns the account or ErrAccountNotFound.
	Get(ctx context.Context, id string) (Account, error)

	// ApplyDelta adds the deltas to the stored balances. The update is atomic
	// per account: concurrent callers must not lose updates. Returns
	// ErrAccountNotFound if the account does not exist.
	ApplyDelta(ctx context.Context, id string, energyDelta, creditDelta float64) error

	// ListAll returns a snapshot of all accounts in a stable order.
	ListAll(ctx context.Context) ([]Account, error)

	// ClearAllExcept removes every account except reservedID. If no account
	// matches reservedID the store ends up empty.
	ClearAllExcept(ctx context.Context, reservedID string) error
}
