package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/events"
)

type AccountService struct {
	ledger    *Ledger
	accounts  domain.AccountRepository
	history   domain.HistoryRepository
	pending   domain.PendingDepositRepository
	publisher events.Publisher
	logger    *slog.Logger
}

func NewAccountService(
	ledger *Ledger,
	accounts domain.AccountRepository,
	history domain.HistoryRepository,
	pending domain.PendingDepositRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		ledger:    ledger,
		accounts:  accounts,
		history:   history,
		pending:   pending,
		publisher: publisher,
		logger:    logger,
	}
}

// DepositResult carries the user-facing message and, when the deposit
// applied immediately, its history record. A queued deposit has no record
// until the sweeper applies it.
type DepositResult struct {
	Message string
	Record  *domain.TransferHistoryRecord
}

// Deposit credits an account. If the account's soft lock is held the
// deposit is queued for the replay sweeper; that is a normal outcome, not
// an error.
func (s *AccountService) Deposit(iban string, amount decimal.Decimal) (*DepositResult, error) {
	s.logger.Info("Processing deposit", "iban", iban, "amount", amount)

	initiatedAt := time.Now()
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.NewAppError(errors.InvalidAmount, "can't perform an empty or negative deposit, please make sure the correct amount is selected")
	}

	account, err := s.accounts.FindByIBAN(iban)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.NewAppError(errors.AccountNotFound, "account you are trying to deposit into doesn't exist")
	}
	if account.Locked {
		return nil, errors.NewAppError(errors.AccountLocked, "can't deposit to a locked account")
	}
	if account.Closed(initiatedAt) {
		return nil, errors.NewAppError(errors.AccountClosed, "can't deposit to a closed account")
	}

	_, acquired, err := s.ledger.TryAcquire(iban)
	if err != nil {
		return nil, err
	}
	if !acquired {
		if err := s.pending.Enqueue(&domain.PendingDeposit{IBAN: iban, Amount: amount}); err != nil {
			return nil, err
		}
		return &DepositResult{
			Message: "current deposit is pending due to processing on the account",
		}, nil
	}

	updated, err := s.ledger.ApplyAndRelease(iban, amount)
	if err != nil {
		if releaseErr := s.ledger.Release(iban); releaseErr != nil {
			s.logger.Error("Failed to release account after apply error", "iban", iban, "error", releaseErr)
		}
		return nil, err
	}

	record, err := s.appendDepositRecord(iban, amount, initiatedAt)
	if err != nil {
		return nil, err
	}

	return &DepositResult{
		Message: fmt.Sprintf("amount successfully deposited, current balance [%s]", updated.Balance.String()),
		Record:  record,
	}, nil
}

// ReplayPending retries a queued deposit. It reports true when the entry is
// resolved (applied, or rejected because the account is gone, locked or
// closed) and must be deleted by the caller.
func (s *AccountService) ReplayPending(deposit *domain.PendingDeposit) (bool, error) {
	account, err := s.accounts.FindByIBAN(deposit.IBAN)
	if err != nil {
		return false, err
	}

	var rejection string
	switch {
	case account == nil:
		rejection = "account no longer exists"
	case account.Locked:
		rejection = "can't deposit to a locked account"
	case account.Closed(time.Now()):
		rejection = "can't deposit to a closed account"
	}
	if rejection != "" {
		if err := s.appendRejectedDepositRecord(deposit.IBAN, deposit.Amount, rejection); err != nil {
			return false, err
		}
		s.logger.Info("Queued deposit rejected on replay", "pending_id", deposit.ID, "comment", rejection)
		return true, nil
	}

	_, acquired, err := s.ledger.TryAcquire(deposit.IBAN)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if _, err := s.ledger.ApplyAndRelease(deposit.IBAN, deposit.Amount); err != nil {
		if releaseErr := s.ledger.Release(deposit.IBAN); releaseErr != nil {
			s.logger.Error("Failed to release account after apply error", "iban", deposit.IBAN, "error", releaseErr)
		}
		return false, err
	}

	if _, err := s.appendDepositRecord(deposit.IBAN, deposit.Amount, time.Now()); err != nil {
		// The balance is already credited. Keeping the entry queued would
		// apply the deposit a second time.
		s.logger.Error("Failed to record replayed deposit", "pending_id", deposit.ID, "error", err)
	}

	s.logger.Info("Queued deposit applied", "pending_id", deposit.ID, "iban", deposit.IBAN)
	return true, nil
}

func (s *AccountService) appendDepositRecord(iban string, amount decimal.Decimal, initiatedAt time.Time) (*domain.TransferHistoryRecord, error) {
	finishedAt := time.Now()
	record := &domain.TransferHistoryRecord{
		ID:              uuid.New(),
		ToAccount:       iban,
		InitiatedAt:     initiatedAt,
		FinishedAt:      &finishedAt,
		Amount:          amount,
		Status:          domain.StatusAccepted,
		TransactionType: domain.TypeDeposit,
		TransactionCode: generateTransactionCode(),
	}
	if err := s.history.CreateRecord(record); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishRecord(context.Background(), record); err != nil {
		s.logger.Error("Failed to publish deposit record", "record_id", record.ID, "error", err)
	}

	return record, nil
}

func (s *AccountService) appendRejectedDepositRecord(iban string, amount decimal.Decimal, comment string) error {
	now := time.Now()
	record := &domain.TransferHistoryRecord{
		ID:              uuid.New(),
		ToAccount:       iban,
		InitiatedAt:     now,
		FinishedAt:      &now,
		Amount:          amount,
		Status:          domain.StatusRejected,
		TransactionType: domain.TypeDeposit,
		TransactionCode: generateTransactionCode(),
		Comment:         &comment,
	}
	if err := s.history.CreateRecord(record); err != nil {
		return err
	}

	if err := s.publisher.PublishRecord(context.Background(), record); err != nil {
		s.logger.Error("Failed to publish deposit record", "record_id", record.ID, "error", err)
	}

	return nil
}

// CreateAccount opens a new account for a customer. A customer can hold at
// most one account per type.
func (s *AccountService) CreateAccount(customerID string, accountType domain.AccountType) (*domain.Account, error) {
	s.logger.Info("Creating account", "customer_id", customerID, "account_type", accountType)

	if strings.TrimSpace(customerID) == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "customer id can't be blank")
	}
	if !accountType.Valid() {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "unknown account type %q", string(accountType))
	}

	existing, err := s.accounts.FindByCustomerAndType(customerID, accountType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewAppErrorf(errors.DuplicateAccount, "customer already has an account of type %s", accountType)
	}

	accountNumber, err := s.generateAccountNumber()
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:            uuid.New(),
		CustomerID:    customerID,
		AccountNumber: accountNumber,
		AccountType:   accountType,
		IBAN:          fmt.Sprintf("BE XX %s %d 00", accountNumber, accountType.Ordinal()),
		DateOpened:    time.Now(),
		Balance:       decimal.Zero,
	}
	if err := s.accounts.CreateAccount(account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *AccountService) generateAccountNumber() (string, error) {
	for {
		accountNumber := fmt.Sprintf("%09d%03d", rand.IntN(999999999), rand.IntN(999))
		existing, err := s.accounts.FindByAccountNumber(accountNumber)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return accountNumber, nil
		}
	}
}

// ListAccountsByType filters a customer's accounts by account type.
func (s *AccountService) ListAccountsByType(customerID string, accountTypes []domain.AccountType) ([]*domain.Account, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "customer id can't be blank")
	}
	for _, t := range accountTypes {
		if !t.Valid() {
			return nil, errors.NewAppErrorf(errors.InvalidInput, "unknown account type %q", string(t))
		}
	}
	return s.accounts.ListByCustomerAndTypes(customerID, accountTypes)
}

// GetBalance resolves a balance by IBAN or account number; at least one must
// be present.
func (s *AccountService) GetBalance(iban, accountNumber string) (decimal.Decimal, error) {
	switch {
	case accountNumber != "":
		account, err := s.accounts.FindByAccountNumber(accountNumber)
		if err != nil {
			return decimal.Zero, err
		}
		if account == nil {
			return decimal.Zero, errors.NewAppErrorf(errors.AccountNotFound, "no account with #%s exists", accountNumber)
		}
		return account.Balance, nil
	case iban != "":
		account, err := s.accounts.FindByIBAN(iban)
		if err != nil {
			return decimal.Zero, err
		}
		if account == nil {
			return decimal.Zero, errors.NewAppErrorf(errors.AccountNotFound, "no iban with #%s exists", iban)
		}
		return account.Balance, nil
	default:
		return decimal.Zero, errors.ErrMissingBalanceQuery
	}
}

// LockAccount sets the administrative lock on an account.
func (s *AccountService) LockAccount(iban string) (*domain.Account, error) {
	return s.ledger.Lock(iban)
}

// UnlockAccount clears the administrative lock on an account.
func (s *AccountService) UnlockAccount(iban string) (*domain.Account, error) {
	return s.ledger.Unlock(iban)
}
