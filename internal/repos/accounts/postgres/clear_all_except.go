package accounts

import (
	"context"
	"fmt"
)

func (r *accountsRepo) ClearAllExcept(ctx context.Context, reservedID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM users
		WHERE id <> $1
	`, reservedID)
	if err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	return nil
}
