package services

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/fundgate/internal/escrow"
	"github.com/huangang/fundgate/internal/models"
	"github.com/huangang/fundgate/pkg/logger"
)

const (
	RecoveryInterval  = 5 * time.Minute
	RecoveryBatchSize = 10
)

// RecoveryResult counts what one recovery pass did with stranded entries
type RecoveryResult struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Left      int `json:"left"`
}

// StartRecoveryScheduler periodically reconciles ledger entries left pending
// by a process that died between the external call and finalization.
func StartRecoveryScheduler(ctx context.Context, s *EscrowService) {
	ticker := time.NewTicker(RecoveryInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RecoverPending(ctx, staleAfter(s)); err != nil {
					logger.Errorf("[Recovery] pass failed: %v", err)
				}
			}
		}
	}()

	logger.Infof("[Recovery] Scheduler started, interval: %v", RecoveryInterval)
}

// staleAfter is how old a pending entry must be before no live caller can
// still be waiting on it
func staleAfter(s *EscrowService) time.Duration {
	return 2 * (s.cfg.RequestTimeout + s.cfg.ConfirmTimeout)
}

// RecoverPending finalizes pending entries older than olderThan. It only asks
// the escrow about calls that were already issued and never issues a new one.
func (s *EscrowService) RecoverPending(ctx context.Context, olderThan time.Duration) (*RecoveryResult, error) {
	var entries []models.Transaction
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.TxStatusPending, time.Now().Add(-olderThan)).
		Order("id").
		Limit(RecoveryBatchSize).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	result := &RecoveryResult{Checked: len(entries)}
	for i := range entries {
		entry := &entries[i]
		status, err := s.client.Verify(ctx, entry.TransactionHash)
		if errors.Is(err, escrow.ErrUnknownTransaction) {
			status, err = escrow.StatusFailed, nil
		}
		if err != nil {
			logger.Warn().Err(err).Uint("tx_id", entry.ID).Msg("[Recovery] verify failed, leaving entry pending")
			result.Left++
			continue
		}

		switch status {
		case escrow.StatusSuccess:
			st, err := s.targetFor(ctx, entry)
			if err != nil {
				logger.Error().Err(err).Uint("tx_id", entry.ID).Msg("[Recovery] cannot rebuild settlement")
				result.Left++
				continue
			}
			if _, err := s.confirm(ctx, st, entry); err != nil {
				logger.Error().Err(err).Uint("tx_id", entry.ID).Msg("[Recovery] confirm failed")
				result.Left++
				continue
			}
			result.Confirmed++

		case escrow.StatusPending:
			result.Left++

		default:
			// failed or never seen by the escrow
			st := &settlement{txType: entry.Type}
			if _, err := s.fail(ctx, st, entry, "escrow has no record of a settled transaction", entry.CreatedAt); err != nil && !errors.Is(err, ErrSettlement) {
				logger.Error().Err(err).Uint("tx_id", entry.ID).Msg("[Recovery] mark failed")
				result.Left++
				continue
			}
			result.Failed++
		}
	}

	if result.Checked > 0 {
		logger.Info().Int("checked", result.Checked).Int("confirmed", result.Confirmed).
			Int("failed", result.Failed).Int("left", result.Left).Msg("[Recovery] pass finished")
	}
	return result, nil
}
