package service

import (
	"log/slog"
	"sync"
	"time"

	"banking-ledger/internal/domain"
)

// Sweeper periodically drains the pending-operation queues using the same
// ledger primitives as the live request paths. A single goroutine runs the
// cycles, and RunCycle itself is mutex-guarded so a manually triggered cycle
// can never overlap a scheduled one.
type Sweeper struct {
	accounts  *AccountService
	transfers *TransferService
	deposits  domain.PendingDepositRepository
	pending   domain.PendingTransferRepository
	interval  time.Duration
	logger    *slog.Logger

	cycleMu  sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewSweeper(
	accounts *AccountService,
	transfers *TransferService,
	deposits domain.PendingDepositRepository,
	pending domain.PendingTransferRepository,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		accounts:  accounts,
		transfers: transfers,
		deposits:  deposits,
		pending:   pending,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.logger.Info("Starting replay sweeper", "interval", s.interval)
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunCycle()
		case <-s.stopCh:
			return
		}
	}
}

// Stop signals the sweep loop to exit and waits for the current cycle to
// finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
	s.logger.Info("Replay sweeper stopped")
}

// RunCycle replays all currently queued deposits, then all queued transfers,
// each in insertion order. An entry whose accounts are still busy stays
// queued for the next cycle; a resolved entry is deleted exactly once, so a
// replay is never applied twice.
func (s *Sweeper) RunCycle() {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.sweepDeposits()
	s.sweepTransfers()
}

func (s *Sweeper) sweepDeposits() {
	deposits, err := s.deposits.ListPending()
	if err != nil {
		s.logger.Error("Failed to list pending deposits", "error", err)
		return
	}

	for _, deposit := range deposits {
		resolved, err := s.accounts.ReplayPending(deposit)
		if err != nil {
			s.logger.Error("Failed to replay pending deposit", "pending_id", deposit.ID, "error", err)
			continue
		}
		if !resolved {
			continue
		}
		if err := s.deposits.Delete(deposit.ID); err != nil {
			s.logger.Error("Failed to delete pending deposit", "pending_id", deposit.ID, "error", err)
		}
	}
}

func (s *Sweeper) sweepTransfers() {
	transfers, err := s.pending.ListPending()
	if err != nil {
		s.logger.Error("Failed to list pending transfers", "error", err)
		return
	}

	for _, transfer := range transfers {
		resolved, err := s.transfers.ReplayPending(transfer)
		if err != nil {
			s.logger.Error("Failed to replay pending transfer", "pending_id", transfer.ID, "error", err)
			continue
		}
		if !resolved {
			continue
		}
		if err := s.pending.Delete(transfer.ID); err != nil {
			s.logger.Error("Failed to delete pending transfer", "pending_id", transfer.ID, "error", err)
		}
	}
}
