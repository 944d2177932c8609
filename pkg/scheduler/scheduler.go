package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultBatchSize    = 100
	DefaultRetryBackoff = 30 * time.Second
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// ScheduleRef names a schedule trigger of an active workflow.
type ScheduleRef struct {
	WorkflowID string
	StepID     string
	Expression string
}

// ScheduleSource lists the schedule triggers of active workflows.
type ScheduleSource interface {
	ScheduleTriggers(ctx context.Context) ([]ScheduleRef, error)
}

// Runner starts a run for a fired schedule trigger.
type Runner interface {
	RunScheduled(ctx context.Context, workflowID string, triggerData map[string]any) error
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// RetryBackoff delays a branch whose resume failed with a retryable error.
	RetryBackoff time.Duration
}

func (c Config) normalize() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}

	return c
}

// Scheduler polls the resume queue and the schedule triggers on a cron ticker.
type Scheduler struct {
	queue   protocol.ResumeQueue
	resumer protocol.Resumer
	source  ScheduleSource
	runner  Runner
	clock   clockwork.Clock
	logger  *slog.Logger
	config  Config

	mu        sync.Mutex
	schedules map[string]*models.TriggerSchedule
	cron      *cron.Cron
}

type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithSchedules enables schedule triggers.
func WithSchedules(source ScheduleSource, runner Runner) Option {
	return func(s *Scheduler) {
		s.source = source
		s.runner = runner
	}
}

func WithConfig(config Config) Option {
	return func(s *Scheduler) { s.config = config.normalize() }
}

func New(queue protocol.ResumeQueue, resumer protocol.Resumer, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:     queue,
		resumer:   resumer,
		clock:     clockwork.NewRealClock(),
		logger:    logger.With("module", "scheduler"),
		config:    Config{}.normalize(),
		schedules: map[string]*models.TriggerSchedule{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start runs Tick every poll interval until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	logger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn))

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))
	s.cron.Schedule(cron.Every(s.config.PollInterval), cron.FuncJob(func() {
		s.Tick(ctx)
	}))
	s.cron.Start()

	s.logger.InfoContext(ctx, "Scheduler started", "poll_interval", s.config.PollInterval)

	return nil
}

// Stop halts the ticker and waits for a running tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("Scheduler stopped")
	}
}

// Tick resumes due branches, then fires due schedule triggers. It returns how
// many branches were resumed and how many runs were started.
func (s *Scheduler) Tick(ctx context.Context) (resumed, fired int) {
	now := s.clock.Now().UTC()

	refs, err := s.queue.Claim(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to claim due branches", "error", err)
	}

	for _, ref := range refs {
		logger := s.logger.With("execution_id", ref.ExecutionID, "suspension_id", ref.SuspensionID)

		if err := s.resumer.Resume(ctx, ref.ExecutionID, ref.SuspensionID); err != nil {
			if errors.Is(err, protocol.ErrStaleResume) {
				logger.WarnContext(ctx, "Dropping branch that can no longer be resumed", "error", err)
				continue
			}

			s.retry(ctx, logger, ref, now, err)

			continue
		}

		logger.InfoContext(ctx, "Resumed branch", "due_at", ref.DueAt)
		resumed++
	}

	if s.source != nil {
		fired = s.fireSchedules(ctx, now)
	}

	return resumed, fired
}

// retry puts a claimed ref back on the queue, due after the retry backoff.
func (s *Scheduler) retry(ctx context.Context, logger *slog.Logger, ref protocol.ResumeRef, now time.Time, cause error) {
	ref.DueAt = now.Add(s.config.RetryBackoff)

	if err := s.queue.Enqueue(ctx, ref); err != nil {
		logger.ErrorContext(ctx, "Failed to resume branch and to requeue it", "error", cause, "requeue_error", err)
		return
	}

	logger.ErrorContext(ctx, "Failed to resume branch, retrying later", "error", cause, "retry_at", ref.DueAt)
}

func (s *Scheduler) fireSchedules(ctx context.Context, now time.Time) int {
	refs, err := s.source.ScheduleTriggers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list schedule triggers", "error", err)
		return 0
	}

	due := s.syncSchedules(refs, now)

	fired := 0

	for _, schedule := range due {
		logger := s.logger.With("workflow_id", schedule.WorkflowID, "step_id", schedule.StepID)

		data := map[string]any{
			"timestamp": now.Format(time.RFC3339),
			"cron":      schedule.Expression,
			"step_id":   schedule.StepID,
		}

		if err := s.runner.RunScheduled(ctx, schedule.WorkflowID, data); err != nil {
			logger.ErrorContext(ctx, "Failed to run scheduled workflow", "error", err)
			continue
		}

		logger.InfoContext(ctx, "Fired schedule trigger", "cron", schedule.Expression)
		fired++
	}

	return fired
}

// syncSchedules reconciles the tracked schedules with refs and returns the
// due ones, already advanced past now.
func (s *Scheduler) syncSchedules(refs []ScheduleRef, now time.Time) []models.TriggerSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(refs))

	for _, ref := range refs {
		key := ref.WorkflowID + "/" + ref.StepID
		seen[key] = true

		if current, ok := s.schedules[key]; ok && current.Expression == ref.Expression {
			continue
		}

		schedule, err := models.NewTriggerSchedule(ref.WorkflowID, ref.StepID, ref.Expression, now)
		if err != nil {
			s.logger.Warn("Ignoring invalid schedule trigger", "workflow_id", ref.WorkflowID, "error", err)
			continue
		}

		s.schedules[key] = schedule
	}

	due := make([]models.TriggerSchedule, 0)

	for key, schedule := range s.schedules {
		if !seen[key] {
			delete(s.schedules, key)
			continue
		}

		if schedule.IsDue(now) {
			due = append(due, *schedule)
			schedule.Advance(now)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].WorkflowID != due[j].WorkflowID {
			return due[i].WorkflowID < due[j].WorkflowID
		}

		return due[i].StepID < due[j].StepID
	})

	return due
}
