package accounts

import (
	"context"
	"fmt"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
)

func (r *accountsRepo) ListAll(ctx context.Context) ([]accounts.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, energy_balance, credit_balance
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []accounts.Account

	for rows.Next() {
		var a accounts.Account

		err := rows.Scan(&a.ID, &a.Name, &a.EnergyBalance, &a.CreditBalance)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		out = append(out, a)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return out, nil
}
