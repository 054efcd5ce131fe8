package repository

import (
	"database/sql"
	"log/slog"

	"banking-ledger/internal/domain"
)

// Store bundles the repositories over a shared executor.
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

func (s *Store) Accounts() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

func (s *Store) History() domain.HistoryRepository {
	return NewHistoryRepository(s.executor, s.logger)
}

func (s *Store) PendingDeposits() domain.PendingDepositRepository {
	return NewPendingDepositRepository(s.executor, s.logger)
}

func (s *Store) PendingTransfers() domain.PendingTransferRepository {
	return NewPendingTransferRepository(s.executor, s.logger)
}
