package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
)

// ApplyEntryInput describes one balance change.
type ApplyEntryInput struct {
	AccountID string
	Kind      domain.EntryKind
	Amount    decimal.Decimal
	OrderID   string
	Reference string
}

// WalletUseCase owns balances and the append-only entry history.
type WalletUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

func NewWalletUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *WalletUseCase {
	return &WalletUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		metrics:     metrics,
	}
}

// CreateAccount registers a zero-balance wallet for an identity.
func (uc *WalletUseCase) CreateAccount(ctx context.Context, id string, role domain.Role) (*domain.Account, error) {
	account, err := domain.NewAccount(id, role, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	err = runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
			return err
		}

		return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   account.ID,
			AggregateType: domain.AggregateTypeAccount,
			EventType:     domain.EventTypeAccountCreated,
			Payload: map[string]any{
				"account_id": account.ID,
				"role":       string(account.Role),
			},
			CreatedAt: account.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	return account, nil
}

// GetAccount retrieves a wallet.
func (uc *WalletUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// GetBalance returns the current balance of a wallet.
func (uc *WalletUseCase) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ListEntries returns an account's entries, newest first.
func (uc *WalletUseCase) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	if _, err := uc.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.entryRepo.ListByAccount(ctx, accountID, limit, offset)
}

// TopUp credits a confirmed payment. The confirmation token makes repeated
// confirmations of the same payment credit once.
func (uc *WalletUseCase) TopUp(ctx context.Context, accountID string, amount decimal.Decimal, token string) (*domain.LedgerEntry, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	return uc.ApplyEntry(ctx, ApplyEntryInput{
		AccountID: accountID,
		Kind:      domain.EntryKindTopUp,
		Amount:    amount,
		Reference: token,
	})
}

// Withdraw debits a cash-out. reference is optional.
func (uc *WalletUseCase) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*domain.LedgerEntry, error) {
	return uc.ApplyEntry(ctx, ApplyEntryInput{
		AccountID: accountID,
		Kind:      domain.EntryKindWithdrawal,
		Amount:    amount,
		Reference: reference,
	})
}

// ApplyEntry appends an entry and updates the balance in its own transaction.
func (uc *WalletUseCase) ApplyEntry(ctx context.Context, input ApplyEntryInput) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	var created bool

	err := runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		var err error
		entry, created, err = uc.applyEntryTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.observe(entry, created)

	return entry, nil
}

// ApplyEntryTx is ApplyEntry inside a caller-owned transaction.
func (uc *WalletUseCase) ApplyEntryTx(ctx context.Context, tx Transaction, input ApplyEntryInput) (*domain.LedgerEntry, error) {
	entry, _, err := uc.applyEntryTx(ctx, tx, input)
	return entry, err
}

// applyEntryTx locks the account row, so the idempotency lookup, the funds
// check and the balance write form one step with respect to other writers of
// the same account. It reports whether a new entry was written.
func (uc *WalletUseCase) applyEntryTx(ctx context.Context, tx Transaction, input ApplyEntryInput) (*domain.LedgerEntry, bool, error) {
	if err := validateEntryInput(input); err != nil {
		return nil, false, err
	}

	account, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, input.AccountID)
	if err != nil {
		return nil, false, err
	}

	existing, err := uc.findExisting(ctx, tx, input)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	newBalance, err := account.Apply(input.Kind, input.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) && uc.metrics != nil {
			uc.metrics.InsufficientFunds.Inc()
		}
		return nil, false, err
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:              uc.idGen.Generate(),
		AccountID:       account.ID,
		Kind:            input.Kind,
		OrderID:         input.OrderID,
		Reference:       input.Reference,
		Amount:          input.Amount,
		PreviousBalance: account.Balance,
		BalanceAfter:    newBalance,
		AccountVersion:  account.Version + 1,
		CreatedAt:       now,
	}

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, false, err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, account.ID, newBalance, entry.AccountVersion, now); err != nil {
		return nil, false, err
	}

	if err := uc.outboxRepo.Create(ctx, tx, domain.NewEntryEvent(uc.idGen.Generate(), entry)); err != nil {
		return nil, false, err
	}

	return entry, true, nil
}

func (uc *WalletUseCase) findExisting(ctx context.Context, tx Transaction, input ApplyEntryInput) (*domain.LedgerEntry, error) {
	if input.OrderID != "" {
		entry, err := uc.entryRepo.GetByOrderAndKind(ctx, tx, input.OrderID, input.Kind)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if input.Reference != "" {
		entry, err := uc.entryRepo.GetByReference(ctx, tx, input.AccountID, input.Reference)
		if err == nil {
			if entry.Kind != input.Kind || !entry.Amount.Equal(input.Amount) {
				return nil, domain.ErrReferenceMismatch
			}
			return entry, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

func (uc *WalletUseCase) observe(entry *domain.LedgerEntry, created bool) {
	if uc.metrics == nil {
		return
	}
	kind := string(entry.Kind)
	if !created {
		uc.metrics.EntryReplays.WithLabelValues(kind).Inc()
		return
	}
	uc.metrics.LedgerEntries.WithLabelValues(kind).Inc()
	uc.metrics.EntryAmount.WithLabelValues(kind).Observe(entry.Amount.InexactFloat64())
}

func validateEntryInput(input ApplyEntryInput) error {
	if err := domain.ValidateID(input.AccountID); err != nil {
		return err
	}
	if !input.Kind.IsValid() {
		return domain.ErrInvalidEntryKind
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return err
	}
	if input.OrderID != "" {
		if err := domain.ValidateID(input.OrderID); err != nil {
			return err
		}
	}
	return domain.ValidateReference(input.Reference)
}
