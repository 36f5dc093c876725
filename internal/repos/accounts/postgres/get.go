package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
)

func (r *accountsRepo) Get(ctx context.Context, id string) (accounts.Account, error) {
	var a accounts.Account

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, energy_balance, credit_balance
		FROM users
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.EnergyBalance, &a.CreditBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return a, nil
}
