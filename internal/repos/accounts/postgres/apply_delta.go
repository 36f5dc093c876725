package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gridmesh/microgrid/internal/infra/pgutils"
	"github.com/gridmesh/microgrid/internal/repos/accounts"
)

// ApplyDelta locks the account row, then updates both balances. The row lock
// serializes concurrent deltas against the same account, and keeps a
// concurrent ClearAllExcept from deleting the row mid-update.
func (r *accountsRepo) ApplyDelta(ctx context.Context, id string, energyDelta, creditDelta float64) error {
	err := pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked string

		err := tx.QueryRow(`
			SELECT id
			FROM users
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return accounts.ErrAccountNotFound
			}

			return fmt.Errorf("lock account: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE users
			SET energy_balance = energy_balance + $2,
			    credit_balance = credit_balance + $3
			WHERE id = $1
		`, id, energyDelta, creditDelta)
		if err != nil {
			return fmt.Errorf("update balances: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return accounts.ErrAccountNotFound
		}

		return fmt.Errorf("apply delta: %w", err)
	}

	return nil
}
