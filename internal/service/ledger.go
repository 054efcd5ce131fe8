package service

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// Ledger owns the soft-lock protocol over accounts. All balance mutations,
// from live requests and from the replay sweeper alike, go through its
// acquire/apply/release primitives.
type Ledger struct {
	accounts domain.AccountRepository
	logger   *slog.Logger
}

func NewLedger(accounts domain.AccountRepository, logger *slog.Logger) *Ledger {
	return &Ledger{
		accounts: accounts,
		logger:   logger,
	}
}

func (l *Ledger) TryAcquire(iban string) (*domain.Account, bool, error) {
	return l.accounts.TryAcquire(iban)
}

func (l *Ledger) ApplyAndRelease(iban string, delta decimal.Decimal) (*domain.Account, error) {
	return l.accounts.ApplyAndRelease(iban, delta)
}

func (l *Ledger) Release(iban string) error {
	return l.accounts.Release(iban)
}

// AccountPair holds the pre-mutation snapshots of both sides of a transfer
// while their soft locks are held.
type AccountPair struct {
	Sender   *domain.Account
	Receiver *domain.Account
}

// AcquirePair acquires both accounts' soft locks before either balance is
// touched. The two IBANs are always taken in lexicographic order, so two
// opposite-direction transfers between the same pair cannot deadlock. If
// only one lock can be taken it is released immediately and acquired is
// false: a partial acquisition never outlives this call.
func (l *Ledger) AcquirePair(sender, receiver string) (*AccountPair, bool, error) {
	first, second := sender, receiver
	if strings.ToLower(second) < strings.ToLower(first) {
		first, second = second, first
	}

	firstAccount, acquired, err := l.accounts.TryAcquire(first)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	secondAccount, acquired, err := l.accounts.TryAcquire(second)
	if err != nil {
		if releaseErr := l.accounts.Release(first); releaseErr != nil {
			l.logger.Error("Failed to release account after acquire error", "iban", first, "error", releaseErr)
		}
		return nil, false, err
	}
	if !acquired {
		if releaseErr := l.accounts.Release(first); releaseErr != nil {
			l.logger.Error("Failed to release account after contention", "iban", first, "error", releaseErr)
		}
		return nil, false, nil
	}

	pair := &AccountPair{Sender: firstAccount, Receiver: secondAccount}
	if !strings.EqualFold(firstAccount.IBAN, sender) {
		pair.Sender, pair.Receiver = secondAccount, firstAccount
	}
	return pair, true, nil
}

// ReleasePair clears both soft locks without mutating balances.
func (l *Ledger) ReleasePair(sender, receiver string) {
	if err := l.accounts.Release(sender); err != nil {
		l.logger.Error("Failed to release account", "iban", sender, "error", err)
	}
	if err := l.accounts.Release(receiver); err != nil {
		l.logger.Error("Failed to release account", "iban", receiver, "error", err)
	}
}

// Lock sets the administrative lock on an account.
func (l *Ledger) Lock(iban string) (*domain.Account, error) {
	return l.setLocked(iban, true)
}

// Unlock clears the administrative lock on an account.
func (l *Ledger) Unlock(iban string) (*domain.Account, error) {
	return l.setLocked(iban, false)
}

func (l *Ledger) setLocked(iban string, locked bool) (*domain.Account, error) {
	if strings.TrimSpace(iban) == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "iban is blank, please make sure to enter a valid iban")
	}

	account, toggled, err := l.accounts.SetLocked(iban, locked)
	if err != nil {
		return nil, err
	}
	if toggled {
		return account, nil
	}

	// The conditional update matched no row: the account is missing or the
	// flag already holds the requested value.
	existing, err := l.accounts.FindByIBAN(iban)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.ErrAccountNotFound
	}
	if locked {
		return nil, errors.NewAppError(errors.AccountLockConflict, "account is already locked, did you mean unlock?")
	}
	return nil, errors.NewAppError(errors.AccountLockConflict, "account is not locked, did you mean lock?")
}
