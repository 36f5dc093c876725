package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/gridmesh/microgrid/internal/repos/transactions"
)

// SubjectTransfers carries one JSON-encoded transaction per committed transfer.
const SubjectTransfers = "microgrid.transfers"

var _ Publisher = (*NATSPublisher)(nil)

type NATSPublisher struct{ nc *nats.Conn }

func NewNATS(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) PublishTransfer(_ context.Context, tx transactions.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}

	err = p.nc.Publish(SubjectTransfers, data)
	if err != nil {
		return fmt.Errorf("publish transfer event: %w", err)
	}

	return nil
}
