// Package scheduler enqueues sync triggers on a weekly calendar.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mq/queue"
	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

// Job names.
const (
	JobWeekday = "weekday-sync"
	JobWeekend = "weekend-sync"
)

// Enqueuer accepts sync requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, source string) (queue.Trigger, error)
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
}

// Scheduler owns a gocron scheduler and its sync jobs.
type Scheduler struct {
	s          gocron.Scheduler
	enqueuer   Enqueuer
	location   *time.Location
	runOnStart bool
	logger     logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunOnStart enqueues one trigger when Start is called.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.runOnStart = enabled
	}
}

// New registers the weekday and weekend jobs described by cfg.
func New(cfg config.ScheduleConfig, enqueuer Enqueuer, opts ...Option) (*Scheduler, error) {
	location := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		location = loc
	}

	gs, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		s:        gs,
		enqueuer: enqueuer,
		location: location,
		logger:   logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.register(cfg); err != nil {
		_ = gs.Shutdown()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) register(cfg config.ScheduleConfig) error {
	if len(cfg.WeekdayTimes) > 0 {
		at, err := parseAtTimes(cfg.WeekdayTimes)
		if err != nil {
			return err
		}
		_, err = s.s.NewJob(
			gocron.WeeklyJob(1,
				gocron.NewWeekdays(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
				at),
			gocron.NewTask(s.fire, JobWeekday),
			gocron.WithName(JobWeekday),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create weekday job: %w", err)
		}
	}

	if cfg.WeekendCron != "" {
		_, err := s.s.NewJob(
			gocron.CronJob(cfg.WeekendCron, false),
			gocron.NewTask(s.fire, JobWeekend),
			gocron.WithName(JobWeekend),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create weekend job: %w", err)
		}
	}
	return nil
}

// parseAtTimes turns "HH:MM" strings into gocron at-times.
func parseAtTimes(values []string) (gocron.AtTimes, error) {
	var at []gocron.AtTime
	for _, v := range values {
		h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
		if !ok {
			return nil, fmt.Errorf("invalid time %q: want HH:MM", v)
		}
		hour, err := strconv.Atoi(h)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("invalid hour in %q", v)
		}
		minute, err := strconv.Atoi(m)
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid minute in %q", v)
		}
		at = append(at, gocron.NewAtTime(uint(hour), uint(minute), 0))
	}
	if len(at) == 0 {
		return nil, errors.New("no times given")
	}
	return gocron.NewAtTimes(at[0], at[1:]...), nil
}

// fire is the task body shared by all jobs.
func (s *Scheduler) fire(job string) {
	ctx := context.Background()
	metrics.RecordSchedulerTrigger(job)
	t, err := s.enqueuer.Enqueue(ctx, queue.SourceSchedule)
	switch {
	case errors.Is(err, queue.ErrCoalesced):
		s.logger.Debug(ctx, "sync already pending", logger.String("job", job), logger.String("trigger", t.ID))
	case err != nil:
		s.logger.Error(ctx, "failed to enqueue scheduled sync", logger.String("job", job), logger.Error(err))
	default:
		s.logger.Info(ctx, "scheduled sync enqueued", logger.String("job", job), logger.String("trigger", t.ID))
	}
}

// Start begins running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.s.Start()
	s.logger.Info(ctx, "scheduler started",
		logger.String("timezone", s.location.String()),
		logger.Int("jobs", len(s.s.Jobs())))

	if s.runOnStart {
		if _, err := s.enqueuer.Enqueue(ctx, queue.SourceStartup); err != nil && !errors.Is(err, queue.ErrCoalesced) {
			s.logger.Error(ctx, "failed to enqueue start-up sync", logger.Error(err))
		}
	}
}

// Jobs lists the registered jobs, sorted by name. NextRun is zero until the
// scheduler is started.
func (s *Scheduler) Jobs() []JobInfo {
	jobs := s.s.Jobs()
	out := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		info := JobInfo{Name: j.Name()}
		if next, err := j.NextRun(); err == nil {
			info.NextRun = next
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Location is the timezone jobs are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.location }

// Stop shuts the scheduler down and waits for running tasks.
func (s *Scheduler) Stop() error {
	return s.s.Shutdown()
}
