package schedulerimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/voxpost/voxpost/internal/coordinator"
	"github.com/voxpost/voxpost/internal/repositories/draft"
	"github.com/voxpost/voxpost/internal/scheduler"
	"github.com/voxpost/voxpost/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	DraftRepo   draft.Repository
	Coordinator coordinator.Client
	Logger      logger.Logger
}

type Impl struct {
	draftRepo   draft.Repository
	coordinator coordinator.Client
	logger      logger.Logger
}

func New(opts Opts) *Impl {
	return &Impl{
		draftRepo:   opts.DraftRepo,
		coordinator: opts.Coordinator,
		logger:      opts.Logger.WithComponent("Scheduler"),
	}
}

var _ scheduler.Client = (*Impl)(nil)

func (s *Impl) SchedulePublishDueDrafts(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create publish scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				s.logger.Info("Context cancelled, stopping due-draft job")
				return
			}

			taskCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			s.publishDue(taskCtx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule due-draft publishing: %w", err)
	}

	sched.Start()

	go func() {
		<-ctx.Done()
		s.logger.Info("Stopping due-draft scheduler")
		if err := sched.Shutdown(); err != nil {
			s.logger.Error("Failed to shut down due-draft scheduler", "error", err)
		}
	}()

	return nil
}

func (s *Impl) publishDue(ctx context.Context) {
	records, err := s.draftRepo.ListDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to list due drafts", "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	s.logger.Info("Publishing due drafts", "count", len(records))
	for _, rec := range records {
		rec := rec
		// Installing the due draft would clobber a draft someone is still
		// editing; leave it for the next tick.
		if active := s.coordinator.Snapshot(); active != nil && active.ID != rec.Draft.ID {
			s.logger.Info("Deferring due draft while another draft is active",
				"draft_id", rec.Draft.ID, "active_draft_id", active.ID)
			continue
		}

		if err := s.coordinator.SyncWithExisting(ctx, &rec.Draft); err != nil {
			s.logger.Error("Failed to adopt due draft", "draft_id", rec.Draft.ID, "error", err)
			continue
		}

		results, err := s.coordinator.FinalizeAndExecutePost(ctx)
		if err != nil {
			s.logger.Error("Failed to publish due draft", "draft_id", rec.Draft.ID, "error", err)
			continue
		}

		failed := 0
		for _, ok := range results {
			if !ok {
				failed++
			}
		}
		if failed > 0 {
			s.logger.Warn("Due draft published with failures",
				"draft_id", rec.Draft.ID, "failed_platforms", failed)
		} else {
			s.logger.Info("Due draft published", "draft_id", rec.Draft.ID)
		}
	}
}

// ScheduleDatabaseCleanup purges terminal drafts at 3:00 AM every day.
func (s *Impl) ScheduleDatabaseCleanup(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0)),
		),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				s.logger.Info("Context cancelled, stopping cleanup job")
				return
			}

			cleanupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			const retention = 30 * 24 * time.Hour

			rowsDeleted, err := s.draftRepo.CleanupOldRecords(cleanupCtx, retention)
			if err != nil {
				s.logger.Error("Failed to clean up old drafts", "error", err)
				return
			}

			s.logger.Info("Draft cleanup completed", "rows_deleted", rowsDeleted)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule draft cleanup: %w", err)
	}

	sched.Start()

	go func() {
		<-ctx.Done()
		s.logger.Info("Stopping cleanup scheduler")
		if err := sched.Shutdown(); err != nil {
			s.logger.Error("Failed to shut down cleanup scheduler", "error", err)
		}
	}()

	return nil
}
