package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/events"
)

type TransferOutcome string

const (
	TransferAccepted TransferOutcome = "accepted"
	TransferRejected TransferOutcome = "rejected"
	TransferQueued   TransferOutcome = "queued"
)

// TransferResult makes the three transfer outcomes explicit at call sites.
// Record is set for accepted and rejected transfers; a queued transfer
// leaves its INITIATED record un-finalized until replay resolves it.
type TransferResult struct {
	Outcome TransferOutcome
	Record  *domain.TransferHistoryRecord
}

type TransferService struct {
	ledger    *Ledger
	accounts  domain.AccountRepository
	history   domain.HistoryRepository
	pending   domain.PendingTransferRepository
	publisher events.Publisher
	logger    *slog.Logger
}

func NewTransferService(
	ledger *Ledger,
	accounts domain.AccountRepository,
	history domain.HistoryRepository,
	pending domain.PendingTransferRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		ledger:    ledger,
		accounts:  accounts,
		history:   history,
		pending:   pending,
		publisher: publisher,
		logger:    logger,
	}
}

// MakeTransfer attempts a transfer between two accounts. Every attempt is
// recorded as INITIATED first, so audit history is complete even for
// rejected ones. Validation failures are not raised: the record transitions
// to REJECTED with the violation as comment and is returned to the caller.
func (s *TransferService) MakeTransfer(sender, receiver string, amount decimal.Decimal) (*TransferResult, error) {
	s.logger.Info("Processing transfer",
		"sender", sender,
		"receiver", receiver,
		"amount", amount)

	record := &domain.TransferHistoryRecord{
		ID:              uuid.New(),
		FromAccount:     &sender,
		ToAccount:       receiver,
		InitiatedAt:     time.Now(),
		Amount:          amount,
		Status:          domain.StatusInitiated,
		TransactionType: domain.TypeTransfer,
		TransactionCode: generateTransactionCode(),
	}
	if err := s.history.CreateRecord(record); err != nil {
		return nil, err
	}

	senderAccount, err := s.accounts.FindByIBAN(sender)
	if err != nil {
		return nil, err
	}
	receiverAccount, err := s.accounts.FindByIBAN(receiver)
	if err != nil {
		return nil, err
	}

	if validationErr := validateTransfer(senderAccount, receiverAccount, amount, time.Now()); validationErr != nil {
		return s.reject(record, validationErr)
	}

	pair, acquired, err := s.ledger.AcquirePair(sender, receiver)
	if err != nil {
		return nil, err
	}
	if !acquired {
		if err := s.pending.Enqueue(&domain.PendingTransfer{
			Sender:    sender,
			Receiver:  receiver,
			Amount:    amount,
			HistoryID: record.ID,
		}); err != nil {
			return nil, err
		}
		s.logger.Info("Transfer queued", "record_id", record.ID)
		return &TransferResult{Outcome: TransferQueued}, nil
	}

	// The validated balance predates acquisition. Re-check the acquired
	// snapshot so a transfer accepted in between cannot drive the sender
	// negative.
	if pair.Sender.Balance.LessThan(amount) {
		s.ledger.ReleasePair(sender, receiver)
		return s.reject(record, errors.NewAppError(errors.InsufficientBalance, "sender account has insufficient balance"))
	}

	if err := s.execute(pair, amount); err != nil {
		return s.reject(record, errors.NewAppError(errors.InternalError, "transfer could not be applied").WithDetails(err.Error()))
	}

	return s.accept(record)
}

// execute debits the sender and credits the receiver while both soft locks
// are held. A failed credit repays the sender before the error propagates,
// so the amount is never lost in between the two accounts.
func (s *TransferService) execute(pair *AccountPair, amount decimal.Decimal) error {
	if _, err := s.ledger.ApplyAndRelease(pair.Sender.IBAN, amount.Neg()); err != nil {
		s.ledger.ReleasePair(pair.Sender.IBAN, pair.Receiver.IBAN)
		return err
	}
	if _, err := s.ledger.ApplyAndRelease(pair.Receiver.IBAN, amount); err != nil {
		if _, repayErr := s.ledger.ApplyAndRelease(pair.Sender.IBAN, amount); repayErr != nil {
			s.logger.Error("Failed to repay sender after credit failure", "iban", pair.Sender.IBAN, "error", repayErr)
		}
		if releaseErr := s.ledger.Release(pair.Receiver.IBAN); releaseErr != nil {
			s.logger.Error("Failed to release receiver", "iban", pair.Receiver.IBAN, "error", releaseErr)
		}
		return err
	}
	return nil
}

func (s *TransferService) accept(record *domain.TransferHistoryRecord) (*TransferResult, error) {
	now := time.Now()
	if err := s.history.FinalizeRecord(record.ID, domain.StatusAccepted, now, nil); err != nil {
		return nil, err
	}
	record.Status = domain.StatusAccepted
	record.FinishedAt = &now

	if err := s.publisher.PublishRecord(context.Background(), record); err != nil {
		s.logger.Error("Failed to publish accepted transfer", "record_id", record.ID, "error", err)
	}

	s.logger.Info("Transfer accepted", "record_id", record.ID)
	return &TransferResult{Outcome: TransferAccepted, Record: record}, nil
}

func (s *TransferService) reject(record *domain.TransferHistoryRecord, cause *errors.AppError) (*TransferResult, error) {
	now := time.Now()
	comment := cause.Message
	if err := s.history.FinalizeRecord(record.ID, domain.StatusRejected, now, &comment); err != nil {
		return nil, err
	}
	record.Status = domain.StatusRejected
	record.FinishedAt = &now
	record.Comment = &comment

	if err := s.publisher.PublishRecord(context.Background(), record); err != nil {
		s.logger.Error("Failed to publish rejected transfer", "record_id", record.ID, "error", err)
	}

	s.logger.Info("Transfer rejected", "record_id", record.ID, "comment", comment)
	return &TransferResult{Outcome: TransferRejected, Record: record}, nil
}

// ReplayPending retries a queued transfer. It reports true when the entry is
// resolved (applied or rejected) and must be deleted by the caller, false
// when the accounts are still busy and the entry stays queued.
func (s *TransferService) ReplayPending(transfer *domain.PendingTransfer) (bool, error) {
	senderAccount, err := s.accounts.FindByIBAN(transfer.Sender)
	if err != nil {
		return false, err
	}
	receiverAccount, err := s.accounts.FindByIBAN(transfer.Receiver)
	if err != nil {
		return false, err
	}

	// Accounts may have been closed or locked since the transfer was
	// queued. Such entries are rejected instead of retried forever.
	if validationErr := validateTransfer(senderAccount, receiverAccount, transfer.Amount, time.Now()); validationErr != nil {
		now := time.Now()
		comment := validationErr.Message
		if err := s.history.FinalizeRecord(transfer.HistoryID, domain.StatusRejected, now, &comment); err != nil {
			return false, err
		}
		s.logger.Info("Queued transfer rejected on replay",
			"pending_id", transfer.ID,
			"comment", comment)
		return true, nil
	}

	pair, acquired, err := s.ledger.AcquirePair(transfer.Sender, transfer.Receiver)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if pair.Sender.Balance.LessThan(transfer.Amount) {
		s.ledger.ReleasePair(transfer.Sender, transfer.Receiver)
		now := time.Now()
		comment := "sender account has insufficient balance"
		if err := s.history.FinalizeRecord(transfer.HistoryID, domain.StatusRejected, now, &comment); err != nil {
			return false, err
		}
		s.logger.Info("Queued transfer rejected on replay", "pending_id", transfer.ID, "comment", comment)
		return true, nil
	}

	if err := s.execute(pair, transfer.Amount); err != nil {
		// The sender has been repaid; finalize instead of retrying against
		// a failing store.
		now := time.Now()
		comment := "transfer could not be applied"
		if finalizeErr := s.history.FinalizeRecord(transfer.HistoryID, domain.StatusRejected, now, &comment); finalizeErr != nil {
			s.logger.Error("Failed to finalize rejected transfer", "record_id", transfer.HistoryID, "error", finalizeErr)
		}
		return true, nil
	}

	now := time.Now()
	if err := s.history.FinalizeRecord(transfer.HistoryID, domain.StatusAccepted, now, nil); err != nil {
		// The balances have already moved. Keeping the entry queued would
		// apply the transfer a second time.
		s.logger.Error("Failed to finalize replayed transfer", "record_id", transfer.HistoryID, "error", err)
		return true, nil
	}

	if record, err := s.history.FindRecord(transfer.HistoryID); err == nil && record != nil {
		if err := s.publisher.PublishRecord(context.Background(), record); err != nil {
			s.logger.Error("Failed to publish replayed transfer", "record_id", record.ID, "error", err)
		}
	}

	s.logger.Info("Queued transfer applied", "pending_id", transfer.ID, "record_id", transfer.HistoryID)
	return true, nil
}

// History returns the records where the account is the origin, ordered by
// initiation.
func (s *TransferService) History(iban string) ([]*domain.TransferHistoryRecord, error) {
	if strings.TrimSpace(iban) == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "iban is blank, please make sure to enter a valid iban")
	}
	return s.history.ListByFromAccount(iban)
}

// validateTransfer runs the transfer validation chain in its fixed order and
// returns the first violation.
func validateTransfer(sender, receiver *domain.Account, amount decimal.Decimal, now time.Time) *errors.AppError {
	switch {
	case sender == nil:
		return errors.NewAppError(errors.AccountNotFound, "sender account doesn't exist")
	case sender.Locked:
		return errors.NewAppError(errors.AccountLocked, "sender account is locked, can't make a transfer from a locked account")
	case sender.Closed(now):
		return errors.NewAppError(errors.AccountClosed, "sender account is closed, can't make a transfer from a closed account")
	case sender.Balance.LessThan(amount):
		return errors.NewAppError(errors.InsufficientBalance, "sender account has insufficient balance")
	case sender.AccountType == domain.AccountTypePrivateLoan:
		return errors.NewAppError(errors.AccountTransferRestricted, "sender account is a private loan account, can't transfer from a private loan account")
	case amount.LessThanOrEqual(decimal.Zero):
		return errors.NewAppError(errors.InvalidAmount, "can't transfer a negative or zero amount")
	case receiver == nil:
		return errors.NewAppError(errors.AccountNotFound, "receiver account doesn't exist")
	case receiver.Locked:
		return errors.NewAppError(errors.AccountLocked, "receiver account is locked, can't make a transfer to a locked account")
	case receiver.Closed(now):
		return errors.NewAppError(errors.AccountClosed, "receiver account is closed, can't make a transfer to a closed account")
	case sender.AccountType == domain.AccountTypeSavings && receiver.AccountType != domain.AccountTypeChecking:
		return errors.NewAppError(errors.AccountTransferRestricted, "only transferring money from the savings account to the reference account (checking account) is possible")
	case strings.EqualFold(sender.IBAN, receiver.IBAN):
		return errors.NewAppError(errors.AccountTransferRestricted, "sender and receiver must be different accounts")
	}
	return nil
}
