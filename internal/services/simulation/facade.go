// Package simulation is the session facade over the transfer engine: user
// creation with collision-safe id generation, read aggregation, and the
// random-transfer driver.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gridmesh/microgrid/internal/repos/accounts"
	"github.com/gridmesh/microgrid/internal/repos/transactions"
	"github.com/gridmesh/microgrid/internal/services/transfer"
	"github.com/gridmesh/microgrid/pkg/retry"
)

// createAttempts bounds the duplicate-id retry loop in CreateUser.
const createAttempts = 5

var ErrUserCreationFailed = errors.New("user creation failed")

// IDGenerator produces a candidate user id for the given retry attempt.
type IDGenerator func(attempt int) string

type Simulation struct {
	accounts accounts.Accounts
	log      transactions.TransactionLog
	engine   *transfer.Engine

	mu        sync.Mutex // guards rng
	rng       *rand.Rand
	newUserID IDGenerator
}

type Option func(*Simulation)

// WithRand replaces the random source. Tests pass a seeded source for
// deterministic simulation runs.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) { s.rng = rng }
}

func WithIDGenerator(fn IDGenerator) Option {
	return func(s *Simulation) { s.newUserID = fn }
}

func New(accts accounts.Accounts, log transactions.TransactionLog, engine *transfer.Engine, opts ...Option) *Simulation {
	s := &Simulation{
		accounts: accts,
		log:      log,
		engine:   engine,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.newUserID == nil {
		s.newUserID = s.defaultUserID
	}

	return s
}

// defaultUserID combines a UTC timestamp, a 6-digit random component and the
// attempt counter, e.g. USER_20250114_093012_482910_0.
func (s *Simulation) defaultUserID(attempt int) string {
	suffix := 100000 + s.intn(900000)

	return fmt.Sprintf("USER_%s_%d_%d", time.Now().UTC().Format("20060102_150405"), suffix, attempt)
}

// CreateUser creates an account with a generated unique id. Id generation
// and insert are retried up to 5 times on a duplicate id; exhaustion or any
// other store failure is reported as ErrUserCreationFailed.
func (s *Simulation) CreateUser(ctx context.Context, name string, initialEnergy, initialCredits float64) (accounts.Account, error) {
	var created accounts.Account

	retryable := func(err error) bool { return errors.Is(err, accounts.ErrDuplicateID) }

	err := retry.Do(createAttempts, retryable, func(attempt int) error {
		a, err := s.accounts.Create(ctx, s.newUserID(attempt), name, initialEnergy, initialCredits)
		if err != nil {
			return err
		}

		created = a

		return nil
	})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %v", ErrUserCreationFailed, err)
	}

	return created, nil
}

// RequestEnergyTransfer delegates to the transfer engine.
func (s *Simulation) RequestEnergyTransfer(ctx context.Context, senderID, receiverID string, amount float64) (transactions.Transaction, error) {
	return s.engine.Process(ctx, senderID, receiverID, amount)
}

func (s *Simulation) GetUserBalance(ctx context.Context, id string) (accounts.Account, error) {
	return s.accounts.Get(ctx, id)
}

func (s *Simulation) GetAllUsers(ctx context.Context) ([]accounts.Account, error) {
	return s.accounts.ListAll(ctx)
}

func (s *Simulation) GetAllTransactions(ctx context.Context) ([]transactions.Transaction, error) {
	return s.log.ListAll(ctx)
}

func (s *Simulation) GetUserTransactions(ctx context.Context, id string) ([]transactions.Transaction, error) {
	return s.log.ListForUser(ctx, id)
}

// ClearAllUsers removes every account except the grid. The transaction log
// is kept: transactions are an immutable audit trail and may reference
// account ids that no longer exist.
func (s *Simulation) ClearAllUsers(ctx context.Context) error {
	err := s.accounts.ClearAllExcept(ctx, transfer.GridID)
	if err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	return nil
}

func (s *Simulation) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.Intn(n)
}

func (s *Simulation) uniform(low, high float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return low + s.rng.Float64()*(high-low)
}
