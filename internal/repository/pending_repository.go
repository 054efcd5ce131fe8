package repository

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// The pending queues are keyed by a bigserial id, so insertion order is the
// replay order.

type pendingDepositRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewPendingDepositRepository(db SQLExecutor, logger *slog.Logger) domain.PendingDepositRepository {
	return &pendingDepositRepository{
		db:     db,
		logger: logger,
	}
}

func (r *pendingDepositRepository) Enqueue(deposit *domain.PendingDeposit) error {
	query := `INSERT INTO pending_deposits (iban, amount) VALUES ($1, $2) RETURNING id`

	err := r.db.QueryRow(query, deposit.IBAN, deposit.Amount.String()).Scan(&deposit.ID)
	if err != nil {
		r.logger.Error("Failed to enqueue pending deposit", "iban", deposit.IBAN, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to enqueue pending deposit").WithDetails(err.Error())
	}

	r.logger.Info("Pending deposit enqueued", "pending_id", deposit.ID, "iban", deposit.IBAN)
	return nil
}

func (r *pendingDepositRepository) ListPending() ([]*domain.PendingDeposit, error) {
	query := `SELECT id, iban, amount FROM pending_deposits ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list pending deposits", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list pending deposits").WithDetails(err.Error())
	}
	defer rows.Close()

	var deposits []*domain.PendingDeposit
	for rows.Next() {
		var deposit domain.PendingDeposit
		var amountStr string
		if err := rows.Scan(&deposit.ID, &deposit.IBAN, &amountStr); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan pending deposit").WithDetails(err.Error())
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse pending amount").WithDetails(err.Error())
		}
		deposit.Amount = amount
		deposits = append(deposits, &deposit)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list pending deposits").WithDetails(err.Error())
	}

	return deposits, nil
}

func (r *pendingDepositRepository) Delete(id int64) error {
	query := `DELETE FROM pending_deposits WHERE id = $1`

	if _, err := r.db.Exec(query, id); err != nil {
		r.logger.Error("Failed to delete pending deposit", "pending_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to delete pending deposit").WithDetails(err.Error())
	}

	r.logger.Info("Pending deposit deleted", "pending_id", id)
	return nil
}

type pendingTransferRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewPendingTransferRepository(db SQLExecutor, logger *slog.Logger) domain.PendingTransferRepository {
	return &pendingTransferRepository{
		db:     db,
		logger: logger,
	}
}

func (r *pendingTransferRepository) Enqueue(transfer *domain.PendingTransfer) error {
	query := `
		INSERT INTO pending_transfers (sender, receiver, amount, history_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(query, transfer.Sender, transfer.Receiver, transfer.Amount.String(), transfer.HistoryID).Scan(&transfer.ID)
	if err != nil {
		r.logger.Error("Failed to enqueue pending transfer",
			"sender", transfer.Sender,
			"receiver", transfer.Receiver,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to enqueue pending transfer").WithDetails(err.Error())
	}

	r.logger.Info("Pending transfer enqueued",
		"pending_id", transfer.ID,
		"sender", transfer.Sender,
		"receiver", transfer.Receiver)
	return nil
}

func (r *pendingTransferRepository) ListPending() ([]*domain.PendingTransfer, error) {
	query := `SELECT id, sender, receiver, amount, history_id FROM pending_transfers ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list pending transfers", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list pending transfers").WithDetails(err.Error())
	}
	defer rows.Close()

	var transfers []*domain.PendingTransfer
	for rows.Next() {
		var transfer domain.PendingTransfer
		var amountStr string
		if err := rows.Scan(&transfer.ID, &transfer.Sender, &transfer.Receiver, &amountStr, &transfer.HistoryID); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan pending transfer").WithDetails(err.Error())
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse pending amount").WithDetails(err.Error())
		}
		transfer.Amount = amount
		transfers = append(transfers, &transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list pending transfers").WithDetails(err.Error())
	}

	return transfers, nil
}

func (r *pendingTransferRepository) Delete(id int64) error {
	query := `DELETE FROM pending_transfers WHERE id = $1`

	if _, err := r.db.Exec(query, id); err != nil {
		r.logger.Error("Failed to delete pending transfer", "pending_id", id, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to delete pending transfer").WithDetails(err.Error())
	}

	r.logger.Info("Pending transfer deleted", "pending_id", id)
	return nil
}
