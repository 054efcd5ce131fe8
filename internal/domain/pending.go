package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingDeposit is a deposit that could not acquire its account's soft lock
// and waits for the replay sweeper. Entries are replayed in insertion order.
type PendingDeposit struct {
	ID     int64           `json:"id"`
	IBAN   string          `json:"iban"`
	Amount decimal.Decimal `json:"amount"`
}

// PendingTransfer is a validated transfer that could not acquire both soft
// locks. HistoryID points at the INITIATED record created when the transfer
// was first attempted, so replay finalizes that record instead of writing a
// second one.
type PendingTransfer struct {
	ID        int64           `json:"id"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"`
	HistoryID uuid.UUID       `json:"history_id"`
}

type PendingDepositRepository interface {
	Enqueue(deposit *PendingDeposit) error
	// ListPending returns all entries in insertion order.
	ListPending() ([]*PendingDeposit, error)
	Delete(id int64) error
}

type PendingTransferRepository interface {
	Enqueue(transfer *PendingTransfer) error
	// ListPending returns all entries in insertion order.
	ListPending() ([]*PendingTransfer, error)
	Delete(id int64) error
}
