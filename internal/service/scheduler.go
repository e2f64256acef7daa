package service

import (
	"context"
	"fmt"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/pkg/logger"

	"github.com/robfig/cron/v3"
)

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop() context.Context
	// NextRuns lists the upcoming fire time of every scheduled job. Jobs the
	// running scheduler has not planned yet are left out.
	NextRuns() map[string]time.Time
}

type scheduledJob struct {
	name string
	spec string
	run  func(ctx context.Context) error
	id   cron.EntryID
}

type schedulerService struct {
	cfg        *config.Config
	log        *logger.Logger
	cronParser cron.Parser
	cron       *cron.Cron
	jobs       []*scheduledJob
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	market MarketService,
	manager *ReconcilerManager,
) *schedulerService {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &schedulerService{
		cfg:        cfg,
		log:        log,
		cronParser: parser,
		cron:       cron.New(cron.WithParser(parser), cron.WithLocation(market.Location())),
	}
	s.jobs = []*scheduledJob{
		{
			name: "holiday_refresh",
			spec: cfg.Market.HolidayRefreshCron,
			run:  market.RefreshHolidays,
		},
		{
			name: "session_start",
			spec: cfg.Market.SessionStartCron,
			run: func(ctx context.Context) error {
				if !market.IsLive(ctx, time.Now()) {
					s.log.InfoContext(ctx, "Market closed, reconciliation loops not resumed")
					return nil
				}
				manager.ResumeAll()
				return nil
			},
		},
	}
	return s
}

func (s *schedulerService) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.spec == "" {
			s.log.InfoContext(ctx, "Job disabled", logger.StringField("job_name", job.name))
			continue
		}
		if _, err := s.cronParser.Parse(job.spec); err != nil {
			return fmt.Errorf("invalid cron expression for %s: %w", job.name, err)
		}
		job := job
		id, err := s.cron.AddFunc(job.spec, func() { s.execute(ctx, job) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		job.id = id
	}
	s.cron.Start()
	s.log.InfoContext(ctx, "Scheduler started", logger.IntField("job_count", len(s.cron.Entries())))
	return nil
}

func (s *schedulerService) execute(ctx context.Context, job *scheduledJob) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.log.DebugContext(ctx, "Executing job", logger.StringField("job_name", job.name))
	if err := job.run(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to execute job",
			logger.StringField("job_name", job.name),
			logger.ErrorField(err),
		)
		return
	}
	s.log.InfoContext(ctx, "Job execution completed",
		logger.StringField("job_name", job.name),
		logger.Field("duration", time.Since(start)),
	)
}

// Stop stops scheduling and returns a context that is done once running
// jobs have finished.
func (s *schedulerService) Stop() context.Context {
	return s.cron.Stop()
}

func (s *schedulerService) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for _, job := range s.jobs {
		if job.id == 0 {
			continue
		}
		if next := s.cron.Entry(job.id).Next; !next.IsZero() {
			out[job.name] = next
		}
	}
	return out
}
