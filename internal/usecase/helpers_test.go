package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/adapter/repository/memory"
	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
	"github.com/iho/rideledger/internal/usecase"
)

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("id-%06d", g.n.Add(1))
}

// unavailableRetrier retries ErrUnavailable without sleeping.
type unavailableRetrier struct {
	attempts int
}

func (r unavailableRetrier) Retry(ctx context.Context, op func() error) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = op(); err == nil || !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
	}
	return err
}

// lostAckRetrier reports the first successful attempt as unavailable and runs
// the operation again, as a caller does when a commit lands but its
// acknowledgement is lost.
type lostAckRetrier struct {
	attempts atomic.Int32
}

func (r *lostAckRetrier) Retry(ctx context.Context, op func() error) error {
	r.attempts.Add(1)
	if err := op(); err != nil {
		return err
	}
	r.attempts.Add(1)
	return op()
}

// flakyEntries fails Create for one entry kind while failures is positive.
type flakyEntries struct {
	*memory.EntryRepository
	kind     domain.EntryKind
	failures atomic.Int32
}

func (f *flakyEntries) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	if entry.Kind == f.kind && f.failures.Add(-1) >= 0 {
		return fmt.Errorf("%w: connection reset", domain.ErrUnavailable)
	}
	return f.EntryRepository.Create(ctx, tx, entry)
}

type harness struct {
	store    *memory.Store
	txm      *memory.TxManager
	accounts *memory.AccountRepository
	entries  usecase.EntryRepository
	orders   *memory.OrderRepository
	outbox   *memory.OutboxRepository
	flaky    *flakyEntries
	bus      *memory.EventBus
	metrics  *metrics.Metrics

	wallet  *usecase.WalletUseCase
	orderUC *usecase.OrderUseCase
	coord   *usecase.CoordinatorUseCase
}

type harnessOption func(*harness, *usecase.CoordinatorConfig)

// withFlakyEntries makes the first failures writes of kind fail as unavailable.
func withFlakyEntries(kind domain.EntryKind, failures int32) harnessOption {
	return func(h *harness, _ *usecase.CoordinatorConfig) {
		h.flaky = &flakyEntries{EntryRepository: memory.NewEntryRepository(h.store), kind: kind}
		h.flaky.failures.Store(failures)
		h.entries = h.flaky
	}
}

func withRetrier(r usecase.Retrier) harnessOption {
	return func(_ *harness, cfg *usecase.CoordinatorConfig) { cfg.Retrier = r }
}

func withEstimator(e usecase.RouteEstimator) harnessOption {
	return func(_ *harness, cfg *usecase.CoordinatorConfig) { cfg.Estimator = e }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	store := memory.NewStore()
	h := &harness{
		store:    store,
		txm:      memory.NewTxManager(store),
		accounts: memory.NewAccountRepository(store),
		entries:  memory.NewEntryRepository(store),
		orders:   memory.NewOrderRepository(store),
		outbox:   memory.NewOutboxRepository(store),
		bus:      memory.NewEventBus(),
		metrics:  metrics.NewWithRegisterer(prometheus.NewRegistry()),
	}

	cfg := usecase.CoordinatorConfig{Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h, &cfg)
	}

	ids := &seqIDs{}
	h.wallet = usecase.NewWalletUseCase(h.txm, h.accounts, h.entries, h.outbox, ids, h.metrics)
	h.orderUC = usecase.NewOrderUseCase(h.txm, h.orders, h.outbox, ids, h.metrics)

	cfg.TxManager = h.txm
	cfg.Orders = h.orderUC
	cfg.Wallet = h.wallet
	cfg.AccountRepo = h.accounts
	cfg.Metrics = h.metrics
	h.coord = usecase.NewCoordinatorUseCase(cfg)

	return h
}

func (h *harness) account(t *testing.T, id string, role domain.Role, balance int64) {
	t.Helper()

	if _, err := h.wallet.CreateAccount(context.Background(), id, role); err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
	if balance > 0 {
		if _, err := h.wallet.TopUp(context.Background(), id, decimal.NewFromInt(balance), "seed-"+id); err != nil {
			t.Fatalf("seed balance %s: %v", id, err)
		}
	}
}

func (h *harness) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()

	b, err := h.wallet.GetBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("balance %s: %v", id, err)
	}
	return b
}

func (h *harness) place(t *testing.T, passengerID string, price int64) *domain.Order {
	t.Helper()

	res, err := h.coord.PlaceOrder(context.Background(), rideInput(passengerID, price))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return res.Order
}

func (h *harness) reconcile(t *testing.T) {
	t.Helper()

	report, err := usecase.NewReconciliationUseCase(h.accounts, h.entries).GenerateReconciliationReport(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.LedgerConsistent {
		for _, d := range report.Discrepancies {
			t.Errorf("account %s: recorded %s calculated %s chain broken %v",
				d.AccountID, d.RecordedBalance, d.CalculatedBalance, d.ChainBroken)
		}
	}
}

func rideInput(passengerID string, price int64) usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		PassengerID: passengerID,
		Origin:      domain.Place{Name: "Central Station", Lat: 52.52, Lng: 13.36},
		Destination: domain.Place{Name: "Airport", Lat: 52.36, Lng: 13.50},
		Distance:    decimal.NewFromFloat(21.5),
		Price:       decimal.NewFromInt(price),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
