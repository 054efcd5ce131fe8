package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

const accountColumns = `
	id, customer_id, account_number, account_type, iban,
	date_opened, date_closed, last_modified, balance, transaction_pending, locked
`

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) CreateAccount(account *domain.Account) error {
	query := `
		INSERT INTO accounts
		(id, customer_id, account_number, account_type, iban, date_opened, balance, transaction_pending, locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE)
	`

	_, err := r.db.Exec(
		query,
		account.ID,
		account.CustomerID,
		account.AccountNumber,
		account.AccountType,
		account.IBAN,
		account.DateOpened,
		account.Balance.String(),
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				r.logger.Warn("Duplicate account creation attempt", "iban", account.IBAN)
				return errors.NewAppError(errors.DuplicateAccount, "account already exists")
			}
		}
		r.logger.Error("Failed to create account", "iban", account.IBAN, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to create account").WithDetails(err.Error())
	}

	r.logger.Info("Account created", "iban", account.IBAN, "account_type", account.AccountType)
	return nil
}

func (r *accountRepository) FindByIBAN(iban string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(iban) = LOWER($1)`
	return r.queryAccount(query, iban)
}

func (r *accountRepository) FindByAccountNumber(accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return r.queryAccount(query, accountNumber)
}

func (r *accountRepository) FindByCustomerAndType(customerID string, accountType domain.AccountType) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE customer_id = $1 AND account_type = $2`
	return r.queryAccount(query, customerID, accountType)
}

func (r *accountRepository) ListByCustomerAndTypes(customerID string, accountTypes []domain.AccountType) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE customer_id = $1 AND account_type = ANY($2)
		ORDER BY date_opened
	`

	types := make([]string, len(accountTypes))
	for i, t := range accountTypes {
		types[i] = string(t)
	}

	rows, err := r.db.Query(query, customerID, pq.Array(types))
	if err != nil {
		r.logger.Error("Failed to list accounts", "customer_id", customerID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list accounts").WithDetails(err.Error())
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan account").WithDetails(err.Error())
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list accounts").WithDetails(err.Error())
	}

	return accounts, nil
}

// TryAcquire flips the soft lock with a single conditional update. Two
// concurrent callers can both read the flag as clear, but only one update
// matches transaction_pending = FALSE; the other observes zero rows and
// reports busy.
func (r *accountRepository) TryAcquire(iban string) (*domain.Account, bool, error) {
	query := `
		UPDATE accounts
		SET transaction_pending = TRUE, last_modified = $2
		WHERE LOWER(iban) = LOWER($1) AND transaction_pending = FALSE
		RETURNING ` + accountColumns

	account, err := r.queryAccount(query, iban, time.Now())
	if err != nil {
		return nil, false, err
	}
	if account != nil {
		return account, true, nil
	}

	// Zero rows: distinguish a missing account from a held one.
	existing, err := r.FindByIBAN(iban)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.ErrAccountNotFound
	}

	r.logger.Info("Account is busy", "iban", iban)
	return nil, false, nil
}

func (r *accountRepository) ApplyAndRelease(iban string, delta decimal.Decimal) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, transaction_pending = FALSE, last_modified = $3
		WHERE LOWER(iban) = LOWER($1)
		RETURNING ` + accountColumns

	account, err := r.queryAccount(query, iban, delta.String(), time.Now())
	if err != nil {
		return nil, err
	}
	if account == nil {
		r.logger.Warn("No account found to apply delta", "iban", iban)
		return nil, errors.ErrAccountNotFound
	}

	r.logger.Info("Balance updated", "iban", iban, "delta", delta, "new_balance", account.Balance)
	return account, nil
}

func (r *accountRepository) Release(iban string) error {
	query := `
		UPDATE accounts
		SET transaction_pending = FALSE, last_modified = $2
		WHERE LOWER(iban) = LOWER($1)
	`

	if _, err := r.db.Exec(query, iban, time.Now()); err != nil {
		r.logger.Error("Failed to release account", "iban", iban, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to release account").WithDetails(err.Error())
	}
	return nil
}

func (r *accountRepository) SetLocked(iban string, locked bool) (*domain.Account, bool, error) {
	query := `
		UPDATE accounts
		SET locked = $2, last_modified = $3
		WHERE LOWER(iban) = LOWER($1) AND locked = $4
		RETURNING ` + accountColumns

	account, err := r.queryAccount(query, iban, locked, time.Now(), !locked)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, nil
	}

	r.logger.Info("Account lock toggled", "iban", iban, "locked", locked)
	return account, true, nil
}

func (r *accountRepository) queryAccount(query string, args ...interface{}) (*domain.Account, error) {
	account, err := scanAccount(r.db.QueryRow(query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get account", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get account").WithDetails(err.Error())
	}
	return account, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string
	var dateClosed, lastModified sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.CustomerID,
		&account.AccountNumber,
		&account.AccountType,
		&account.IBAN,
		&account.DateOpened,
		&dateClosed,
		&lastModified,
		&balanceStr,
		&account.TransactionPending,
		&account.Locked,
	)
	if err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, err
	}
	account.Balance = balance

	if dateClosed.Valid {
		account.DateClosed = &dateClosed.Time
	}
	if lastModified.Valid {
		account.LastModified = &lastModified.Time
	}

	return &account, nil
}
