// Package memory provides an in-memory TransactionLog.
package memory

import (
	"context"
	"sync"

	"github.com/gridmesh/microgrid/internal/repos/transactions"
)

var _ transactions.TransactionLog = (*Log)(nil)

// Log is an append-only slice plus an id index for duplicate detection.
// The slice order is the commit order returned by ListAll.
type Log struct {
	mu   sync.RWMutex
	txs  []transactions.Transaction
	byID map[string]struct{}
}

func New() *Log {
	return &Log{byID: make(map[string]struct{})}
}

func (l *Log) Append(_ context.Context, tx transactions.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[tx.TxID]; ok {
		return transactions.ErrDuplicateTransaction
	}

	l.byID[tx.TxID] = struct{}{}
	l.txs = append(l.txs, tx)

	return nil
}

func (l *Log) ListAll(_ context.Context) ([]transactions.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]transactions.Transaction, len(l.txs))
	copy(out, l.txs)

	return out, nil
}

func (l *Log) ListForUser(_ context.Context, id string) ([]transactions.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []transactions.Transaction

	for _, tx := range l.txs {
		if tx.SenderID == id || tx.ReceiverID == id {
			out = append(out, tx)
		}
	}

	return out, nil
}
