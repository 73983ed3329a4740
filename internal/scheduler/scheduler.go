package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// RunEngine executes one notification run
type RunEngine interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
}

// RunScheduler invokes the engine on a cron schedule evaluated in the
// business timezone
type RunScheduler struct {
	cron     *cron.Cron
	engine   RunEngine
	schedule string
	log      *logger.Logger
	entryID  cron.EntryID
}

// NewRunScheduler creates a scheduler; nothing runs until Start
func NewRunScheduler(engine RunEngine, schedule string, loc *time.Location, log *logger.Logger) *RunScheduler {
	return &RunScheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		engine:   engine,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the run and starts the cron loop
func (s *RunScheduler) Start() error {
	s.log.Info("Starting run scheduler", "schedule", s.schedule)

	entryID, err := s.cron.AddFunc(s.schedule, s.Execute)
	if err != nil {
		return err
	}
	s.entryID = entryID

	s.cron.Start()
	s.log.Info("Run scheduler started", "next_run", s.NextRun())
	return nil
}

// Stop stops the scheduler and waits for a run in flight
func (s *RunScheduler) Stop(ctx context.Context) {
	s.log.Info("Stopping run scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Run scheduler stop timed out")
	}
}

// NextRun reports when the engine runs next; zero before Start
func (s *RunScheduler) NextRun() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Execute performs one scheduled run
func (s *RunScheduler) Execute() {
	s.log.Info("Executing scheduled run")

	summary, err := s.engine.Run(context.Background())
	if errors.Is(err, domain.ErrRunInProgress) {
		s.log.Info("Skipping scheduled run, another run is in progress")
		return
	}
	if err != nil {
		s.log.Error("Scheduled run failed", "error", err)
		return
	}

	s.log.Info("Scheduled run finished",
		"run_id", summary.RunID,
		"results", summary.Results(),
		"errors", len(summary.Errors()),
	)
}
