package service

import (
	"context"
	"errors"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// BatchRunner runs one reminder batch.
type BatchRunner interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
}

// LedgerPruner drops processed-event records older than a cutoff.
type LedgerPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// MonitorService is the in-process trigger. On every tick it runs a
// reminder batch and prunes the webhook ledger past its retention.
type MonitorService struct {
	runner    BatchRunner
	ledger    LedgerPruner
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewMonitorService creates a MonitorService. ledger may be nil.
func NewMonitorService(runner BatchRunner, ledger LedgerPruner, interval, retention time.Duration) *MonitorService {
	return &MonitorService{
		runner:    runner,
		ledger:    ledger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Start begins the loop in a background goroutine. It stops when ctx is
// cancelled. A non-positive interval disables it.
func (s *MonitorService) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	log.Info().Dur("interval", s.interval).Msg("in-process reminder trigger enabled")

	// Start immediately, then ticker
	go func() {
		s.tick(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *MonitorService) tick(ctx context.Context) {
	summary, err := s.runner.Run(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		log.Debug().Msg("reminder run skipped, another holder has the lock")
	case err != nil:
		log.Error().Err(err).Msg("scheduled reminder run failed")
	default:
		log.Info().Str("run_id", summary.RunID).Int("sent", summary.Sent).Msg("scheduled reminder run finished")
	}

	if s.ledger == nil || s.retention <= 0 {
		return
	}
	n, err := s.ledger.Prune(ctx, s.now().Add(-s.retention))
	if err != nil {
		log.Warn().Err(err).Msg("webhook ledger prune failed")
		return
	}
	if n > 0 {
		log.Info().Int64("pruned", n).Msg("webhook ledger pruned")
	}
}
