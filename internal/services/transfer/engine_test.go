package transfer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
	accountsmem "github.com/gridmesh/microgrid/internal/repos/accounts/memory"
	"github.com/gridmesh/microgrid/internal/repos/transactions"
	transactionsmem "github.com/gridmesh/microgrid/internal/repos/transactions/memory"
)

const eps = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < eps }

func newEngine(t *testing.T, opts ...Option) (*Engine, *accountsmem.Store, *transactionsmem.Log) {
	t.Helper()

	store := accountsmem.New()
	log := transactionsmem.New()

	e, err := New(t.Context(), store, log, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	return e, store, log
}

func mustCreate(t *testing.T, store *accountsmem.Store, id, name string, energy, credit float64) {
	t.Helper()

	_, err := store.Create(t.Context(), id, name, energy, credit)
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func mustGet(t *testing.T, store *accountsmem.Store, id string) accounts.Account {
	t.Helper()

	a, err := store.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}

	return a
}

func TestNew_BootstrapsGrid(t *testing.T) {
	_, store, _ := newEngine(t)

	grid := mustGet(t, store, GridID)
	if grid.Name != GridName {
		t.Fatalf("grid name = %q, want %q", grid.Name, GridName)
	}

	if !almostEqual(grid.EnergyBalance, DefaultGridEndowment) {
		t.Fatalf("grid energy = %v, want %v", grid.EnergyBalance, DefaultGridEndowment)
	}

	if !almostEqual(grid.CreditBalance, 0) {
		t.Fatalf("grid credits = %v, want 0", grid.CreditBalance)
	}
}

func TestNew_BootstrapIsIdempotent(t *testing.T) {
	_, store, log := newEngine(t)

	// Drain part of the pool, then re-run initialization against the same store.
	err := store.ApplyDelta(t.Context(), GridID, -400, 0)
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	_, err = New(t.Context(), store, log)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}

	grid := mustGet(t, store, GridID)
	if !almostEqual(grid.EnergyBalance, DefaultGridEndowment-400) {
		t.Fatalf("grid energy reset by re-init: got %v", grid.EnergyBalance)
	}

	all, err := store.ListAll(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(all) != 1 {
		t.Fatalf("accounts = %d, want 1", len(all))
	}
}

func TestNew_CustomEndowment(t *testing.T) {
	_, store, _ := newEngine(t, WithGridEndowment(250))

	grid := mustGet(t, store, GridID)
	if !almostEqual(grid.EnergyBalance, 250) {
		t.Fatalf("grid energy = %v, want 250", grid.EnergyBalance)
	}
}

func TestValidate(t *testing.T) {
	e, store, _ := newEngine(t)
	mustCreate(t, store, "A", "Alice", 150, 100)
	mustCreate(t, store, "B", "Bob", 120, 100)

	tests := []struct {
		name     string
		sender   string
		receiver string
		amount   float64
		wantErr  error
	}{
		{name: "ok", sender: "A", receiver: "B", amount: 50},
		{name: "zero_amount", sender: "A", receiver: "B", amount: 0, wantErr: ErrInvalidAmount},
		{name: "negative_amount", sender: "A", receiver: "B", amount: -5, wantErr: ErrInvalidAmount},
		{name: "self_transfer", sender: "A", receiver: "A", amount: 10, wantErr: ErrSelfTransfer},
		{name: "sender_missing", sender: "ghost", receiver: "B", amount: 10, wantErr: accounts.ErrAccountNotFound},
		{name: "receiver_missing", sender: "A", receiver: "ghost", amount: 10, wantErr: accounts.ErrAccountNotFound},
		{name: "insufficient", sender: "A", receiver: "B", amount: 150.01, wantErr: ErrInsufficientBalance},
		{name: "exact_balance_ok", sender: "A", receiver: "B", amount: 150},
		{name: "grid_exempt_from_balance_check", sender: GridID, receiver: "B", amount: 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Validate(t.Context(), tt.sender, tt.receiver, tt.amount)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsWhichPartyIsMissing(t *testing.T) {
	e, store, _ := newEngine(t)
	mustCreate(t, store, "A", "Alice", 150, 100)

	err := e.Validate(t.Context(), "A", "ghost", 10)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}

	if nf.Role != "receiver" || nf.ID != "ghost" {
		t.Fatalf("got role=%q id=%q, want receiver/ghost", nf.Role, nf.ID)
	}
}

func TestProcess_Success(t *testing.T) {
	e, store, log := newEngine(t)
	mustCreate(t, store, "A", "Alice", 150, 100)
	mustCreate(t, store, "B", "Bob", 120, 100)

	tx, err := e.Process(t.Context(), "A", "B", 50)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if tx.TxID == "" {
		t.Fatal("empty tx id")
	}

	if tx.SenderID != "A" || tx.ReceiverID != "B" || !almostEqual(tx.Amount, 50) {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	if tx.Timestamp.IsZero() {
		t.Fatal("zero timestamp")
	}

	a := mustGet(t, store, "A")
	b := mustGet(t, store, "B")

	if !almostEqual(a.EnergyBalance, 100) || !almostEqual(b.EnergyBalance, 170) {
		t.Fatalf("balances after transfer: A=%v B=%v, want 100/170", a.EnergyBalance, b.EnergyBalance)
	}

	// Credits are untouched by energy transfers.
	if !almostEqual(a.CreditBalance, 100) || !almostEqual(b.CreditBalance, 100) {
		t.Fatalf("credits changed: A=%v B=%v", a.CreditBalance, b.CreditBalance)
	}

	txs, err := log.ListAll(t.Context())
	if err != nil {
		t.Fatalf("list log: %v", err)
	}

	if len(txs) != 1 {
		t.Fatalf("logged transactions = %d, want 1", len(txs))
	}
}

func TestProcess_ConservesTotalEnergy(t *testing.T) {
	e, store, _ := newEngine(t)
	mustCreate(t, store, "A", "Alice", 150, 0)
	mustCreate(t, store, "B", "Bob", 120, 0)

	before := mustGet(t, store, "A").EnergyBalance + mustGet(t, store, "B").EnergyBalance

	_, err := e.Process(t.Context(), "A", "B", 33.25)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	after := mustGet(t, store, "A").EnergyBalance + mustGet(t, store, "B").EnergyBalance
	if !almostEqual(before, after) {
		t.Fatalf("energy not conserved: before=%v after=%v", before, after)
	}
}

func TestProcess_InsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	e, store, log := newEngine(t)
	mustCreate(t, store, "A", "Alice", 150, 100)
	mustCreate(t, store, "B", "Bob", 120, 100)

	_, err := e.Process(t.Context(), "A", "B", 9999)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}

	a := mustGet(t, store, "A")
	b := mustGet(t, store, "B")

	if !almostEqual(a.EnergyBalance, 150) || !almostEqual(b.EnergyBalance, 120) {
		t.Fatalf("balances changed: A=%v B=%v", a.EnergyBalance, b.EnergyBalance)
	}

	txs, _ := log.ListAll(t.Context())
	if len(txs) != 0 {
		t.Fatalf("logged transactions = %d, want 0", len(txs))
	}
}

func TestProcess_GridSelfTransferRejected(t *testing.T) {
	e, _, _ := newEngine(t)

	_, err := e.Process(t.Context(), GridID, GridID, 10)
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("want ErrSelfTransfer, got %v", err)
	}
}

func TestProcess_GridMayGoNegative(t *testing.T) {
	e, store, _ := newEngine(t, WithGridEndowment(5))
	mustCreate(t, store, "A", "Alice", 0, 0)

	_, err := e.Process(t.Context(), GridID, "A", 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	grid := mustGet(t, store, GridID)
	if !almostEqual(grid.EnergyBalance, -5) {
		t.Fatalf("grid energy = %v, want -5", grid.EnergyBalance)
	}

	a := mustGet(t, store, "A")
	if !almostEqual(grid.EnergyBalance+a.EnergyBalance, 5) {
		t.Fatalf("total energy = %v, want 5", grid.EnergyBalance+a.EnergyBalance)
	}
}

func TestProcess_CompensatesSenderOnReceiverFailure(t *testing.T) {
	store := accountsmem.New()
	log := transactionsmem.New()

	// Debit (call 1) and the compensating credit (call 3) succeed; the
	// receiver credit (call 2) fails.
	seq := &applySequence{store: store, failOn: map[int]bool{2: true}}

	e, err := New(t.Context(), seq, log)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	mustCreate(t, store, "A", "Alice", 150, 0)
	mustCreate(t, store, "B", "Bob", 120, 0)

	_, err = e.Process(t.Context(), "A", "B", 50)
	if !errors.Is(err, ErrTransferApplication) {
		t.Fatalf("want ErrTransferApplication, got %v", err)
	}

	a := mustGet(t, store, "A")
	b := mustGet(t, store, "B")

	if !almostEqual(a.EnergyBalance, 150) {
		t.Fatalf("sender not compensated: %v", a.EnergyBalance)
	}

	if !almostEqual(b.EnergyBalance, 120) {
		t.Fatalf("receiver changed: %v", b.EnergyBalance)
	}

	txs, _ := log.ListAll(t.Context())
	if len(txs) != 0 {
		t.Fatalf("logged transactions = %d, want 0", len(txs))
	}
}

// applySequence fails the nth ApplyDelta call (1-based) for each n in failOn.
type applySequence struct {
	store  accounts.Accounts
	calls  int
	failOn map[int]bool
}

func (s *applySequence) Create(ctx context.Context, id, name string, energy, credit float64) (accounts.Account, error) {
	return s.store.Create(ctx, id, name, energy, credit)
}

func (s *applySequence) Get(ctx context.Context, id string) (accounts.Account, error) {
	return s.store.Get(ctx, id)
}

func (s *applySequence) ApplyDelta(ctx context.Context, id string, energyDelta, creditDelta float64) error {
	s.calls++
	if s.failOn[s.calls] {
		return errors.New("store offline")
	}

	return s.store.ApplyDelta(ctx, id, energyDelta, creditDelta)
}

func (s *applySequence) ListAll(ctx context.Context) ([]accounts.Account, error) {
	return s.store.ListAll(ctx)
}

func (s *applySequence) ClearAllExcept(ctx context.Context, reservedID string) error {
	return s.store.ClearAllExcept(ctx, reservedID)
}

func TestProcess_CompensationFailureReportsOriginalCause(t *testing.T) {
	store := accountsmem.New()
	log := transactionsmem.New()

	// Receiver credit (call 2) and the compensating sender credit (call 3)
	// both fail. The original cause must still come back; the inconsistency
	// is only logged.
	seq := &applySequence{store: store, failOn: map[int]bool{2: true, 3: true}}

	e, err := New(t.Context(), seq, log)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	mustCreate(t, store, "A", "Alice", 150, 0)
	mustCreate(t, store, "B", "Bob", 120, 0)

	_, err = e.Process(t.Context(), "A", "B", 50)
	if !errors.Is(err, ErrTransferApplication) {
		t.Fatalf("want ErrTransferApplication, got %v", err)
	}

	// The debit stuck because compensation failed; that is the documented
	// reportable anomaly, not a silent success.
	a := mustGet(t, store, "A")
	if !almostEqual(a.EnergyBalance, 100) {
		t.Fatalf("sender balance = %v, want 100 (debit stuck)", a.EnergyBalance)
	}
}

type failingLog struct{}

func (failingLog) Append(context.Context, transactions.Transaction) error {
	return errors.New("log unavailable")
}

func (failingLog) ListAll(context.Context) ([]transactions.Transaction, error) { return nil, nil }

func (failingLog) ListForUser(context.Context, string) ([]transactions.Transaction, error) {
	return nil, nil
}

func TestProcess_LogFailureUnwindsBothApplies(t *testing.T) {
	store := accountsmem.New()

	e, err := New(t.Context(), store, failingLog{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	mustCreate(t, store, "A", "Alice", 150, 0)
	mustCreate(t, store, "B", "Bob", 120, 0)

	_, err = e.Process(t.Context(), "A", "B", 50)
	if !errors.Is(err, ErrTransferApplication) {
		t.Fatalf("want ErrTransferApplication, got %v", err)
	}

	a := mustGet(t, store, "A")
	b := mustGet(t, store, "B")

	if !almostEqual(a.EnergyBalance, 150) || !almostEqual(b.EnergyBalance, 120) {
		t.Fatalf("balances not restored: A=%v B=%v", a.EnergyBalance, b.EnergyBalance)
	}
}

type capturePublisher struct {
	published []transactions.Transaction
	err       error
}

func (p *capturePublisher) PublishTransfer(_ context.Context, tx transactions.Transaction) error {
	if p.err != nil {
		return p.err
	}

	p.published = append(p.published, tx)

	return nil
}

func TestProcess_PublishesCommittedTransfer(t *testing.T) {
	pub := &capturePublisher{}

	e, store, _ := newEngine(t, WithPublisher(pub))
	mustCreate(t, store, "A", "Alice", 150, 0)
	mustCreate(t, store, "B", "Bob", 120, 0)

	tx, err := e.Process(t.Context(), "A", "B", 25)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(pub.published) != 1 || pub.published[0].TxID != tx.TxID {
		t.Fatalf("published = %+v, want the committed tx", pub.published)
	}
}

func TestProcess_PublishFailureDoesNotFailTransfer(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}

	e, store, log := newEngine(t, WithPublisher(pub))
	mustCreate(t, store, "A", "Alice", 150, 0)
	mustCreate(t, store, "B", "Bob", 120, 0)

	_, err := e.Process(t.Context(), "A", "B", 25)
	if err != nil {
		t.Fatalf("process failed on publish error: %v", err)
	}

	txs, _ := log.ListAll(t.Context())
	if len(txs) != 1 {
		t.Fatalf("logged transactions = %d, want 1", len(txs))
	}
}
