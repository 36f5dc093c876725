// Package transfer implements the energy transfer engine: validation, the
// two-sided balance update with compensation on partial failure, and the
// transaction log append. The reserved grid account is bootstrapped here.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gridmesh/microgrid/internal/events"
	"github.com/gridmesh/microgrid/internal/repos/accounts"
	"github.com/gridmesh/microgrid/internal/repos/transactions"
)

const (
	// GridID is the reserved system account. It is exempt from the
	// non-negative balance precondition and acts as an unbounded source.
	GridID   = "GRID_001"
	GridName = "Central Microgrid"

	DefaultGridEndowment = 1000.0
)

type Engine struct {
	accounts accounts.Accounts
	log      transactions.TransactionLog
	events   events.Publisher

	endowment float64
	now       func() time.Time
	newTxID   func() string
}

type Option func(*Engine)

func WithGridEndowment(energy float64) Option {
	return func(e *Engine) { e.endowment = energy }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTxIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newTxID = fn }
}

// New constructs the engine and bootstraps the grid account if it is absent.
// The bootstrap is idempotent: an existing grid account is left untouched,
// and a duplicate-id error from a concurrent bootstrap counts as success.
func New(ctx context.Context, accts accounts.Accounts, log transactions.TransactionLog, opts ...Option) (*Engine, error) {
	e := &Engine{
		accounts:  accts,
		log:       log,
		events:    events.Nop{},
		endowment: DefaultGridEndowment,
		now:       func() time.Time { return time.Now().UTC() },
		newTxID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	_, err := e.accounts.Get(ctx, GridID)
	if err == nil {
		return e, nil
	}

	if !errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, fmt.Errorf("check grid account: %w", err)
	}

	_, err = e.accounts.Create(ctx, GridID, GridName, e.endowment, 0)
	if err != nil && !errors.Is(err, accounts.ErrDuplicateID) {
		return nil, fmt.Errorf("create grid account: %w", err)
	}

	return e, nil
}

// Validate checks a proposed transfer without side effects. The checks run
// in a fixed order so callers get a deterministic failure reason.
func (e *Engine) Validate(ctx context.Context, senderID, receiverID string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if senderID == receiverID {
		return ErrSelfTransfer
	}

	sender, err := e.accounts.Get(ctx, senderID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return &NotFoundError{Role: "sender", ID: senderID}
		}

		return fmt.Errorf("get sender: %w", err)
	}

	_, err = e.accounts.Get(ctx, receiverID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return &NotFoundError{Role: "receiver", ID: receiverID}
		}

		return fmt.Errorf("get receiver: %w", err)
	}

	if senderID != GridID && sender.EnergyBalance < amount {
		return ErrInsufficientBalance
	}

	return nil
}

// Process runs the full transfer flow:
//
// 1) Validate; invalid requests leave no side effects.
// 2) Debit the sender. A failure here aborts with nothing to undo.
// 3) Credit the receiver. A failure triggers a compensating credit back to
//    the sender so the observable energy total is unchanged.
// 4) Append the transaction to the log. A failure unwinds both applies.
//
// Compensation is best-effort: its own failure is logged as an anomaly and
// only the original cause is reported.
func (e *Engine) Process(ctx context.Context, senderID, receiverID string, amount float64) (transactions.Transaction, error) {
	err := e.Validate(ctx, senderID, receiverID, amount)
	if err != nil {
		return transactions.Transaction{}, err
	}

	err = e.accounts.ApplyDelta(ctx, senderID, -amount, 0)
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("%w: debit sender: %v", ErrTransferApplication, err)
	}

	err = e.accounts.ApplyDelta(ctx, receiverID, amount, 0)
	if err != nil {
		e.compensate(ctx, senderID, amount)

		return transactions.Transaction{}, fmt.Errorf("%w: credit receiver: %v", ErrTransferApplication, err)
	}

	tx := transactions.Transaction{
		TxID:       e.newTxID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Timestamp:  e.now(),
	}

	err = e.log.Append(ctx, tx)
	if err != nil {
		e.compensate(ctx, receiverID, -amount)
		e.compensate(ctx, senderID, amount)

		return transactions.Transaction{}, fmt.Errorf("%w: log transaction: %v", ErrTransferApplication, err)
	}

	err = e.events.PublishTransfer(ctx, tx)
	if err != nil {
		slog.Warn("transfer event publish failed", "tx_id", tx.TxID, "error", err)
	}

	return tx, nil
}

func (e *Engine) compensate(ctx context.Context, id string, energyDelta float64) {
	err := e.accounts.ApplyDelta(ctx, id, energyDelta, 0)
	if err != nil {
		slog.Error("transfer compensation failed",
			"account_id", id,
			"energy_delta", energyDelta,
			"error", err,
		)
	}
}
