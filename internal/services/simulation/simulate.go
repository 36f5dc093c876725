package simulation

import (
	"context"
	"fmt"
	"math"

	"github.com/gridmesh/microgrid/internal/repos/transactions"
	"github.com/gridmesh/microgrid/internal/services/transfer"
)

// gridAmountCap limits random transfer amounts when the grid is the sender;
// the grid has no meaningful balance to bound the draw.
const gridAmountCap = 10.0

// SimulateRandomTransfers attempts n random transfers between existing
// accounts and returns the ones that committed. Each attempt picks a uniform
// random sender, a distinct uniform random receiver, and an amount in
// [1, cap] rounded to 2 decimals, where cap is the sender's current energy
// balance (at least 1) or a fixed constant for the grid. Failed attempts are
// skipped without retry, so fewer than n transactions may come back.
func (s *Simulation) SimulateRandomTransfers(ctx context.Context, n int) ([]transactions.Transaction, error) {
	users, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if len(users) < 2 {
		return nil, nil
	}

	var completed []transactions.Transaction

	for i := 0; i < n; i++ {
		sender := users[s.intn(len(users))]

		receiver := users[s.intn(len(users)-1)]
		if receiver.ID == sender.ID {
			receiver = users[len(users)-1]
		}

		// Re-read the sender so the cap tracks balance changes made by
		// earlier iterations.
		current, err := s.accounts.Get(ctx, sender.ID)
		if err != nil {
			continue
		}

		limit := current.EnergyBalance
		if sender.ID == transfer.GridID {
			limit = gridAmountCap
		}

		if limit < 1 {
			limit = 1
		}

		amount := math.Round(s.uniform(1, limit)*100) / 100

		tx, err := s.engine.Process(ctx, sender.ID, receiver.ID, amount)
		if err != nil {
			// Failed attempts are not retried.
			continue
		}

		completed = append(completed, tx)
	}

	return completed, nil
}
