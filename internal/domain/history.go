package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	StatusInitiated TransferStatus = "INITIATED"
	StatusAccepted  TransferStatus = "ACCEPTED"
	StatusRejected  TransferStatus = "REJECTED"
)

type TransactionType string

const (
	TypeDeposit  TransactionType = "DEPOSIT"
	TypeTransfer TransactionType = "TRANSFER"
)

// TransferHistoryRecord is the audit entry for a deposit or transfer
// attempt. FromAccount is nil for deposits. A record is terminal once its
// status is ACCEPTED or REJECTED; INITIATED records stay un-finalized only
// while a live pending transfer references them.
type TransferHistoryRecord struct {
	ID              uuid.UUID       `json:"id"`
	FromAccount     *string         `json:"from_account,omitempty"`
	ToAccount       string          `json:"to_account"`
	InitiatedAt     time.Time       `json:"initiated_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Status          TransferStatus  `json:"status"`
	TransactionType TransactionType `json:"transaction_type"`
	TransactionCode string          `json:"transaction_code"`
	Comment         *string         `json:"comment,omitempty"`
}

type HistoryRepository interface {
	CreateRecord(record *TransferHistoryRecord) error
	// FindRecord returns (nil, nil) when no record matches.
	FindRecord(id uuid.UUID) (*TransferHistoryRecord, error)
	// FinalizeRecord transitions a record to a terminal status.
	FinalizeRecord(id uuid.UUID, status TransferStatus, finishedAt time.Time, comment *string) error
	// ListByFromAccount returns the records where the account is the
	// origin, ordered by initiation.
	ListByFromAccount(iban string) ([]*TransferHistoryRecord, error)
}
