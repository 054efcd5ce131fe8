package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeChecking    AccountType = "CHECKING"
	AccountTypeSavings     AccountType = "SAVINGS"
	AccountTypePrivateLoan AccountType = "PRIVATE_LOAN"
)

// Ordinal returns the stable index of the account type, used when deriving
// IBANs from account numbers.
func (t AccountType) Ordinal() int {
	switch t {
	case AccountTypeChecking:
		return 0
	case AccountTypeSavings:
		return 1
	case AccountTypePrivateLoan:
		return 2
	}
	return -1
}

func (t AccountType) Valid() bool {
	return t.Ordinal() >= 0
}

type Account struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    string          `json:"customer_id"`
	AccountNumber string          `json:"account_number"`
	AccountType   AccountType     `json:"account_type"`
	IBAN          string          `json:"iban"`
	DateOpened    time.Time       `json:"date_opened"`
	DateClosed    *time.Time      `json:"date_closed,omitempty"`
	LastModified  *time.Time      `json:"last_modified,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	// TransactionPending is the soft lock guarding balance mutations. It is
	// only ever toggled through AccountRepository.TryAcquire and the
	// apply/release operations.
	TransactionPending bool `json:"transaction_pending"`
	// Locked is the administrative lock. A locked account accepts no
	// deposits and no outbound transfers.
	Locked bool `json:"locked"`
}

// Closed reports whether the account was closed before the given time.
func (a *Account) Closed(now time.Time) bool {
	return a.DateClosed != nil && a.DateClosed.Before(now)
}

type AccountRepository interface {
	CreateAccount(account *Account) error
	// FindByIBAN returns (nil, nil) when no account matches.
	FindByIBAN(iban string) (*Account, error)
	// FindByAccountNumber returns (nil, nil) when no account matches.
	FindByAccountNumber(accountNumber string) (*Account, error)
	// FindByCustomerAndType returns (nil, nil) when the customer has no
	// account of the given type.
	FindByCustomerAndType(customerID string, accountType AccountType) (*Account, error)
	ListByCustomerAndTypes(customerID string, accountTypes []AccountType) ([]*Account, error)

	// TryAcquire atomically sets the soft lock when it is currently clear
	// and returns the pre-mutation snapshot. The second return value is
	// false when the account is already held; that is a normal outcome,
	// not an error.
	TryAcquire(iban string) (*Account, bool, error)
	// ApplyAndRelease adds delta to the balance, clears the soft lock and
	// bumps last_modified in a single update. The caller must hold the
	// account via a prior TryAcquire.
	ApplyAndRelease(iban string, delta decimal.Decimal) (*Account, error)
	// Release clears the soft lock without touching the balance.
	Release(iban string) error

	// SetLocked toggles the administrative lock. The update is conditional
	// on the flag currently holding the opposite value; acquired reports
	// whether the row was updated.
	SetLocked(iban string, locked bool) (*Account, bool, error)
}
