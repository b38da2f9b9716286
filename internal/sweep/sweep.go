// Package sweep runs pricing tools on a cron schedule, e.g. a nightly
// catalog.resetPriceAll. Sweeps go through the host like any other request;
// results are logged and never retried.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/rpc"
)

const defaultTimeout = 2 * time.Minute

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Job is one scheduled tool call.
type Job struct {
	Name      string         `yaml:"name"`
	Schedule  string         `yaml:"schedule"`
	Tool      string         `yaml:"tool"`
	Arguments map[string]any `yaml:"arguments"`
}

// Handler is the host as seen by the scheduler.
type Handler interface {
	Handle(ctx context.Context, req *rpc.Request) *rpc.Response
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Host Handler
	Jobs []Job
	// Timeout bounds each run. Defaults to 2m.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Scheduler fires Jobs on their cron schedules, in UTC. A run still in
// progress when its next tick arrives causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	host    Handler
	timeout time.Duration
	logger  *zap.Logger
	jobs    []Job
}

// NewScheduler validates every job and builds the scheduler. It does not start it.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Host == nil {
		return nil, errors.New("sweep: host is nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	logger := cronLogger{cfg.Logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(standardCronParser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		host:    cfg.Host,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}

	seen := make(map[string]bool, len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		if err := validate(job); err != nil {
			return nil, err
		}
		if seen[job.Name] {
			return nil, fmt.Errorf("sweep: duplicate job %q", job.Name)
		}
		seen[job.Name] = true

		if _, err := s.cron.AddFunc(job.Schedule, func() { s.Run(context.Background(), job) }); err != nil {
			return nil, fmt.Errorf("sweep: job %q: invalid schedule: %w", job.Name, err)
		}
		s.jobs = append(s.jobs, job)
	}
	return s, nil
}

func validate(job Job) error {
	if strings.TrimSpace(job.Name) == "" {
		return errors.New("sweep: job name is required")
	}
	if strings.TrimSpace(job.Tool) == "" {
		return fmt.Errorf("sweep: job %q: tool is required", job.Name)
	}
	if _, err := standardCronParser.Parse(job.Schedule); err != nil {
		return fmt.Errorf("sweep: job %q: invalid schedule: %w", job.Name, err)
	}
	return nil
}

// Jobs returns the scheduled jobs.
func (s *Scheduler) Jobs() []Job { return s.jobs }

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Debug("sweep scheduled", zap.Time("next", e.Next))
	}
}

// Stop stops firing new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes job once and returns the host's response.
func (s *Scheduler) Run(ctx context.Context, job Job) *rpc.Response {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := job.Arguments
	if args == nil {
		args = map[string]any{}
	}
	rawArgs, err := json.Marshal(args)
	if err != nil {
		s.logger.Error("sweep arguments not encodable", zap.String("job", job.Name), zap.Error(err))
		return rpc.Failure(nil, rpc.ErrInvalidParams(err.Error()))
	}
	params, _ := json.Marshal(rpc.CallToolParams{Name: job.Tool, Arguments: rawArgs})
	id, _ := json.Marshal("sweep-" + job.Name + "-" + uuid.NewString())

	start := time.Now()
	resp := s.host.Handle(ctx, &rpc.Request{
		JSONRPC: rpc.Version,
		ID:      id,
		Method:  rpc.MethodCallTool,
		Params:  params,
	})

	if resp.Error != nil {
		s.logger.Warn("sweep failed",
			zap.String("job", job.Name),
			zap.String("tool", job.Tool),
			zap.Int("code", resp.Error.Code),
			zap.String("error", resp.Error.Message),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resp
	}
	s.logger.Info("sweep completed",
		zap.String("job", job.Name),
		zap.String("tool", job.Tool),
		zap.ByteString("result", resp.Result),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
