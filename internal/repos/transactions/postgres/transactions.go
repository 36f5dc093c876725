package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gridmesh/microgrid/internal/repos/transactions"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ transactions.TransactionLog = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

func (r *transactionsRepo) Append(ctx context.Context, tx transactions.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (tx_id, sender_id, receiver_id, amount, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, tx.TxID, tx.SenderID, tx.ReceiverID, tx.Amount, tx.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return transactions.ErrDuplicateTransaction
			}
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// ListAll returns transactions ordered by insertion sequence, which is the
// commit order aggregations rely on.
func (r *transactionsRepo) ListAll(ctx context.Context) ([]transactions.Transaction, error) {
	return r.query(ctx, `
		SELECT tx_id, sender_id, receiver_id, amount, ts
		FROM transactions
		ORDER BY seq
	`)
}

func (r *transactionsRepo) ListForUser(ctx context.Context, id string) ([]transactions.Transaction, error) {
	return r.query(ctx, `
		SELECT tx_id, sender_id, receiver_id, amount, ts
		FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY seq
	`, id)
}

func (r *transactionsRepo) query(ctx context.Context, q string, args ...any) ([]transactions.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []transactions.Transaction

	for rows.Next() {
		var tx transactions.Transaction

		err := rows.Scan(&tx.TxID, &tx.SenderID, &tx.ReceiverID, &tx.Amount, &tx.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		out = append(out, tx)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
