package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
	"github.com/jackc/pgx/v5/pgconn"
)

func (r *accountsRepo) Create(ctx context.Context, id, name string, energy, credit float64) (accounts.Account, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, energy_balance, credit_balance)
		VALUES ($1, $2, $3, $4)
	`, id, name, energy, credit)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return accounts.Account{}, accounts.ErrDuplicateID
			}
		}

		return accounts.Account{}, fmt.Errorf("insert account: %w", err)
	}

	return accounts.Account{ID: id, Name: name, EnergyBalance: energy, CreditBalance: credit}, nil
}
