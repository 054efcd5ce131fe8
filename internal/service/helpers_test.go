package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/events"
)

type testFixture struct {
	accounts  *fakeAccountRepo
	history   *fakeHistoryRepo
	deposits  *fakePendingDepositRepo
	transfers *fakePendingTransferRepo

	ledger          *Ledger
	accountService  *AccountService
	transferService *TransferService
	sweeper         *Sweeper
}

func newTestFixture(accounts ...*domain.Account) *testFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := newFakeAccountRepo(accounts...)
	history := &fakeHistoryRepo{}
	deposits := &fakePendingDepositRepo{}
	transfers := &fakePendingTransferRepo{}

	ledger := NewLedger(repo, logger)
	accountService := NewAccountService(ledger, repo, history, deposits, events.NoopPublisher{}, logger)
	transferService := NewTransferService(ledger, repo, history, transfers, events.NoopPublisher{}, logger)
	sweeper := NewSweeper(accountService, transferService, deposits, transfers, 10*time.Millisecond, logger)

	return &testFixture{
		accounts:        repo,
		history:         history,
		deposits:        deposits,
		transfers:       transfers,
		ledger:          ledger,
		accountService:  accountService,
		transferService: transferService,
		sweeper:         sweeper,
	}
}

func testAccount(iban string, accountType domain.AccountType, balance string) *domain.Account {
	return &domain.Account{
		ID:            uuid.New(),
		CustomerID:    "customer-" + iban,
		AccountNumber: "acct-" + iban,
		AccountType:   accountType,
		IBAN:          iban,
		DateOpened:    time.Now().AddDate(0, -1, 0),
		Balance:       decimal.RequireFromString(balance),
	}
}

func (f *testFixture) balance(iban string) decimal.Decimal {
	account, err := f.accounts.FindByIBAN(iban)
	if err != nil || account == nil {
		panic("unknown test account " + iban)
	}
	return account.Balance
}

func (f *testFixture) markBusy(iban string) {
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	f.accounts.get(iban).TransactionPending = true
}

func (f *testFixture) clearBusy(iban string) {
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	f.accounts.get(iban).TransactionPending = false
}

func (f *testFixture) isBusy(iban string) bool {
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	return f.accounts.get(iban).TransactionPending
}

func (f *testFixture) closeAccount(iban string, when time.Time) {
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	f.accounts.get(iban).DateClosed = &when
}

func (f *testFixture) lockAccountDirect(iban string) {
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	f.accounts.get(iban).Locked = true
}
