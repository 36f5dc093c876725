// Package events publishes committed transfers for downstream consumers
// (dashboards, settlement jobs). Publishing is best-effort: the transfer
// engine never fails a committed transfer because an event did not go out.
package events

import (
	"context"

	"github.com/gridmesh/microgrid/internal/repos/transactions"
)

type Publisher interface {
	PublishTransfer(ctx context.Context, tx transactions.Transaction) error
}

// Nop discards all events. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishTransfer(context.Context, transactions.Transaction) error { return nil }
