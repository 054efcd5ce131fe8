package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// fakeAccountRepo mimics the Postgres repository's conditional updates: all
// flag toggles happen under one mutex, so TryAcquire is atomic the same way
// the SQL compare-and-set is.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	// applyFails injects an error into the next n ApplyAndRelease calls
	// for an iban, keyed lowercase.
	applyFails map[string]int
	// onTryAcquire, when set, runs before each acquisition attempt.
	onTryAcquire func(iban string)
}

func newFakeAccountRepo(accounts ...*domain.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{
		accounts:   make(map[string]*domain.Account),
		applyFails: make(map[string]int),
	}
	for _, account := range accounts {
		copied := *account
		repo.accounts[strings.ToLower(account.IBAN)] = &copied
	}
	return repo
}

func (f *fakeAccountRepo) get(iban string) *domain.Account {
	return f.accounts[strings.ToLower(iban)]
}

func (f *fakeAccountRepo) snapshot(account *domain.Account) *domain.Account {
	copied := *account
	return &copied
}

func (f *fakeAccountRepo) CreateAccount(account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.get(account.IBAN) != nil {
		return errors.NewAppError(errors.DuplicateAccount, "account already exists")
	}
	copied := *account
	f.accounts[strings.ToLower(account.IBAN)] = &copied
	return nil
}

func (f *fakeAccountRepo) FindByIBAN(iban string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.get(iban)
	if account == nil {
		return nil, nil
	}
	return f.snapshot(account), nil
}

func (f *fakeAccountRepo) FindByAccountNumber(accountNumber string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if account.AccountNumber == accountNumber {
			return f.snapshot(account), nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) FindByCustomerAndType(customerID string, accountType domain.AccountType) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, account := range f.accounts {
		if account.CustomerID == customerID && account.AccountType == accountType {
			return f.snapshot(account), nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) ListByCustomerAndTypes(customerID string, accountTypes []domain.AccountType) ([]*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var accounts []*domain.Account
	for _, account := range f.accounts {
		if account.CustomerID != customerID {
			continue
		}
		for _, t := range accountTypes {
			if account.AccountType == t {
				accounts = append(accounts, f.snapshot(account))
				break
			}
		}
	}
	return accounts, nil
}

func (f *fakeAccountRepo) failNextApply(iban string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyFails[strings.ToLower(iban)]++
}

func (f *fakeAccountRepo) TryAcquire(iban string) (*domain.Account, bool, error) {
	if f.onTryAcquire != nil {
		f.onTryAcquire(iban)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.get(iban)
	if account == nil {
		return nil, false, errors.ErrAccountNotFound
	}
	if account.TransactionPending {
		return nil, false, nil
	}
	account.TransactionPending = true
	return f.snapshot(account), true, nil
}

func (f *fakeAccountRepo) ApplyAndRelease(iban string, delta decimal.Decimal) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key := strings.ToLower(iban); f.applyFails[key] > 0 {
		f.applyFails[key]--
		return nil, errors.NewAppError(errors.InternalError, "balance update failed")
	}
	account := f.get(iban)
	if account == nil {
		return nil, errors.ErrAccountNotFound
	}
	now := time.Now()
	account.Balance = account.Balance.Add(delta)
	account.TransactionPending = false
	account.LastModified = &now
	return f.snapshot(account), nil
}

func (f *fakeAccountRepo) Release(iban string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if account := f.get(iban); account != nil {
		account.TransactionPending = false
	}
	return nil
}

func (f *fakeAccountRepo) SetLocked(iban string, locked bool) (*domain.Account, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.get(iban)
	if account == nil || account.Locked == locked {
		return nil, false, nil
	}
	account.Locked = locked
	return f.snapshot(account), true, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*domain.TransferHistoryRecord
	// failCreates and failFinalizes inject an error into that many of the
	// next corresponding calls.
	failCreates   int
	failFinalizes int
}

func (f *fakeHistoryRepo) CreateRecord(record *domain.TransferHistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates > 0 {
		f.failCreates--
		return errors.NewAppError(errors.InternalError, "history write failed")
	}
	copied := *record
	f.records = append(f.records, &copied)
	return nil
}

func (f *fakeHistoryRepo) FindRecord(id uuid.UUID) (*domain.TransferHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.ID == id {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeHistoryRepo) FinalizeRecord(id uuid.UUID, status domain.TransferStatus, finishedAt time.Time, comment *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFinalizes > 0 {
		f.failFinalizes--
		return errors.NewAppError(errors.InternalError, "history write failed")
	}
	for _, record := range f.records {
		if record.ID == id && record.Status == domain.StatusInitiated {
			record.Status = status
			record.FinishedAt = &finishedAt
			record.Comment = comment
		}
	}
	return nil
}

func (f *fakeHistoryRepo) ListByFromAccount(iban string) ([]*domain.TransferHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []*domain.TransferHistoryRecord
	for _, record := range f.records {
		if record.FromAccount != nil && strings.EqualFold(*record.FromAccount, iban) {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (f *fakeHistoryRepo) all() []*domain.TransferHistoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]*domain.TransferHistoryRecord, len(f.records))
	for i, record := range f.records {
		copied := *record
		records[i] = &copied
	}
	return records
}

type fakePendingDepositRepo struct {
	mu     sync.Mutex
	nextID int64
	items  []*domain.PendingDeposit
}

func (f *fakePendingDepositRepo) Enqueue(deposit *domain.PendingDeposit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	deposit.ID = f.nextID
	copied := *deposit
	f.items = append(f.items, &copied)
	return nil
}

func (f *fakePendingDepositRepo) ListPending() ([]*domain.PendingDeposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]*domain.PendingDeposit, len(f.items))
	for i, item := range f.items {
		copied := *item
		items[i] = &copied
	}
	return items, nil
}

func (f *fakePendingDepositRepo) Delete(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}

type fakePendingTransferRepo struct {
	mu     sync.Mutex
	nextID int64
	items  []*domain.PendingTransfer
}

func (f *fakePendingTransferRepo) Enqueue(transfer *domain.PendingTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	transfer.ID = f.nextID
	copied := *transfer
	f.items = append(f.items, &copied)
	return nil
}

func (f *fakePendingTransferRepo) ListPending() ([]*domain.PendingTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]*domain.PendingTransfer, len(f.items))
	for i, item := range f.items {
		copied := *item
		items[i] = &copied
	}
	return items, nil
}

func (f *fakePendingTransferRepo) Delete(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}
