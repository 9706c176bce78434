package ledgerservice

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// ReconcileReport counts the stuck transactions handled by ReconcileStuck.
type ReconcileReport struct {
	Completed int
	Failed    int
	Pending   int
}

// ExpireStale expires the transactions whose challenge expired and returns how many it expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	l := zerolog.Ctx(ctx)

	stale, err := s.transactions.ListExpiring(ctx, s.now(), s.config.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0

	for _, t := range stale {
		_, err := s.transition(ctx, t, domain.StatusExpired, "")

		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrInvalidTransition):
			// Confirmed or expired concurrently.
		default:
			l.Error().Err(err).Str("reference", t.Reference).Msg("cannot expire transaction")
		}
	}

	return expired, nil
}

// ReconcileStuck re-drives the transactions left in processing longer than the reconciliation SLA.
func (s *Service) ReconcileStuck(ctx context.Context) (ReconcileReport, error) {
	l := zerolog.Ctx(ctx)

	var report ReconcileReport

	stuck, err := s.transactions.ListStuck(ctx, s.now().Add(-s.config.ReconciliationSLA), s.config.SweepBatchSize)
	if err != nil {
		return report, err
	}

	for _, t := range stuck {
		next, err := s.Reconcile(ctx, t.Reference)
		if err != nil {
			l.Warn().Err(err).Str("reference", t.Reference).Msg("reconciliation unresolved")
		}

		switch next.Status {
		case domain.StatusCompleted:
			report.Completed++
		case domain.StatusFailed, domain.StatusExpired:
			report.Failed++
		default:
			report.Pending++
		}
	}

	return report, nil
}
