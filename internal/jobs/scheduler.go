package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// EdgePruner removes ownership edges whose endpoint principals are gone.
type EdgePruner interface {
	PruneOrphanEdges(ctx context.Context) (int64, error)
}

// Scheduler runs periodic maintenance. Self-only deletes intentionally
// leave dangling edges behind; the nightly prune keeps the mapping tables
// consistent with the principal table.
type Scheduler struct {
	cron   *cron.Cron
	pruner EdgePruner
	log    zerolog.Logger
}

func NewScheduler(pruner EdgePruner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		pruner: pruner,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.pruneOrphanEdges); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for any running job to finish, bounded by a short timeout.
func (s *Scheduler) Stop() {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) pruneOrphanEdges() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pruned, err := s.pruner.PruneOrphanEdges(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("orphan edge prune failed")
		return
	}
	if pruned > 0 {
		s.log.Info().Int64("edges", pruned).Msg("orphan edges pruned")
	}
}
