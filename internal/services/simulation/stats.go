package simulation

import (
	"context"
	"fmt"
)

type MostActiveUser struct {
	UserID           string `json:"user_id"`
	TransactionCount int    `json:"transaction_count"`
}

// Stats is a point-in-time aggregate over all accounts and the transaction
// log. Totals are recomputed on every call, never cached.
type Stats struct {
	TotalEnergy    float64         `json:"total_energy"`
	TotalCredits   float64         `json:"total_credits"`
	UserCount      int             `json:"user_count"`
	MostActiveUser *MostActiveUser `json:"most_active_user,omitempty"`
}

// GetSummaryStatistics sums balances over all accounts and finds the most
// active account id, counting appearances as sender or receiver. The scan
// runs left to right over the log's commit order; on a tie the first id to
// reach the maximum count wins. MostActiveUser is nil when the log is empty.
func (s *Simulation) GetSummaryStatistics(ctx context.Context) (Stats, error) {
	users, err := s.accounts.ListAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list users: %w", err)
	}

	stats := Stats{UserCount: len(users)}
	for _, u := range users {
		stats.TotalEnergy += u.EnergyBalance
		stats.TotalCredits += u.CreditBalance
	}

	txs, err := s.log.ListAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list transactions: %w", err)
	}

	if len(txs) == 0 {
		return stats, nil
	}

	counts := make(map[string]int)
	best := MostActiveUser{}

	bump := func(id string) {
		counts[id]++
		if counts[id] > best.TransactionCount {
			best = MostActiveUser{UserID: id, TransactionCount: counts[id]}
		}
	}

	for _, tx := range txs {
		bump(tx.SenderID)
		bump(tx.ReceiverID)
	}

	stats.MostActiveUser = &best

	return stats, nil
}
