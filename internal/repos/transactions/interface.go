package transactions

import (
	"context"
	"errors"
	"time"
)

var ErrDuplicateTransaction = errors.New("duplicate transaction")

// Transaction is an immutable record of a committed energy transfer.
type Transaction struct {
	TxID       string    `json:"tx_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

type TransactionLog interface {
	// Append stores a completed transfer. Returns ErrDuplicateTransaction
	// if tx.TxID is already present.
	Append(ctx context.Context, tx Transaction) error

	// ListAll returns every transaction in commit order. Aggregations that
	// need a deterministic scan (most-active-user tie-break) rely on this
	// order.
	ListAll(ctx context.Context) ([]Transaction, error)

	// ListForUser returns the transactions where id is sender or receiver,
	// in commit order.
	ListForUser(ctx context.Context, id string) ([]Transaction, error)
}
