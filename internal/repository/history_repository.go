package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

const historyColumns = `
	id, from_account, to_account, initiated_at, finished_at,
	amount, status, transaction_type, transaction_code, comment
`

type historyRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewHistoryRepository(db SQLExecutor, logger *slog.Logger) domain.HistoryRepository {
	return &historyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *historyRepository) CreateRecord(record *domain.TransferHistoryRecord) error {
	query := `
		INSERT INTO transfers_history
		(id, from_account, to_account, initiated_at, finished_at, amount, status, transaction_type, transaction_code, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(
		query,
		record.ID,
		record.FromAccount,
		record.ToAccount,
		record.InitiatedAt,
		record.FinishedAt,
		record.Amount.String(),
		record.Status,
		record.TransactionType,
		record.TransactionCode,
		record.Comment,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation on transaction_code
				r.logger.Warn("Transaction code collision", "transaction_code", record.TransactionCode)
			}
		}
		r.logger.Error("Failed to create history record",
			"to_account", record.ToAccount,
			"transaction_type", record.TransactionType,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create history record").WithDetails(err.Error())
	}

	r.logger.Info("History record created",
		"record_id", record.ID,
		"status", record.Status,
		"transaction_type", record.TransactionType)
	return nil
}

func (r *historyRepository) FindRecord(id uuid.UUID) (*domain.TransferHistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM transfers_history WHERE id = $1`

	record, err := scanHistoryRecord(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get history record", "record_id", id, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get history record").WithDetails(err.Error())
	}
	return record, nil
}

func (r *historyRepository) FinalizeRecord(id uuid.UUID, status domain.TransferStatus, finishedAt time.Time, comment *string) error {
	query := `
		UPDATE transfers_history
		SET status = $2, finished_at = $3, comment = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.Exec(query, id, status, finishedAt, comment, domain.StatusInitiated)
	if err != nil {
		r.logger.Error("Failed to finalize history record", "record_id", id, "status", status, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to finalize history record").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		// Already terminal, or unknown id. Terminal records never change
		// again, so this is not retried.
		r.logger.Warn("History record not finalized", "record_id", id, "status", status)
		return nil
	}

	r.logger.Info("History record finalized", "record_id", id, "status", status)
	return nil
}

func (r *historyRepository) ListByFromAccount(iban string) ([]*domain.TransferHistoryRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM transfers_history
		WHERE LOWER(from_account) = LOWER($1)
		ORDER BY initiated_at
	`

	rows, err := r.db.Query(query, iban)
	if err != nil {
		r.logger.Error("Failed to list history records", "iban", iban, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list history records").WithDetails(err.Error())
	}
	defer rows.Close()

	var records []*domain.TransferHistoryRecord
	for rows.Next() {
		record, err := scanHistoryRecord(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan history record").WithDetails(err.Error())
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list history records").WithDetails(err.Error())
	}

	return records, nil
}

func scanHistoryRecord(row rowScanner) (*domain.TransferHistoryRecord, error) {
	var record domain.TransferHistoryRecord
	var amountStr string
	var fromAccount, comment sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&fromAccount,
		&record.ToAccount,
		&record.InitiatedAt,
		&finishedAt,
		&amountStr,
		&record.Status,
		&record.TransactionType,
		&record.TransactionCode,
		&comment,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, err
	}
	record.Amount = amount

	if fromAccount.Valid {
		record.FromAccount = &fromAccount.String
	}
	if finishedAt.Valid {
		record.FinishedAt = &finishedAt.Time
	}
	if comment.Valid {
		record.Comment = &comment.String
	}

	return &record, nil
}
