package transfer

import (
	"errors"
	"fmt"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
)

var (
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
	ErrSelfTransfer        = errors.New("sender and receiver cannot be the same")
	ErrInsufficientBalance = errors.New("insufficient energy balance")

	// ErrTransferApplication covers failures after validation passed: an
	// account vanished between validation and apply, or the log append
	// failed. The engine has already attempted compensation by the time
	// this is returned.
	ErrTransferApplication = errors.New("transfer application failed")
)

// NotFoundError reports which party of a transfer does not exist.
// It unwraps to accounts.ErrAccountNotFound.
type NotFoundError struct {
	Role string // "sender" or "receiver"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Role, e.ID)
}

func (e *NotFoundError) Unwrap() error { return accounts.ErrAccountNotFound }
