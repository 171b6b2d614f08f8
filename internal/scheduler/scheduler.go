package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/pkg/config"
)

// Sweeper is one background sweep. It returns how many notifications it
// dispatched during the run.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type sweepObserver interface {
	ObserveSweep(name string, duration time.Duration, dispatched int)
}

// Scheduler drives the deadline and trial sweeps. In production each sweep
// runs on its cron specs; in development both run on a fixed interval so a
// local stack exercises the whole pipeline without waiting for the clock.
type Scheduler struct {
	deadlines Sweeper
	trials    Sweeper
	metrics   sweepObserver
	logger    *zap.Logger
	config    config.SchedulerConfig
	env       string

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler. metrics may be nil.
func New(deadlines, trials Sweeper, metrics sweepObserver, logger *zap.Logger, env string, cfg config.SchedulerConfig) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.DeadlineCrons) == 0 {
		cfg.DeadlineCrons = []string{"0 8 * * *", "0 12 * * *"}
	}
	if cfg.TrialCron == "" {
		cfg.TrialCron = "0 9 * * *"
	}
	if cfg.DevInterval <= 0 {
		cfg.DevInterval = 5 * time.Minute
	}
	return &Scheduler{
		deadlines: deadlines,
		trials:    trials,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
		env:       env,
	}
}

// Start registers the schedules and begins running sweeps. It returns
// immediately; sweeps run on background goroutines until Stop.
func (s *Scheduler) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.env == config.EnvProduction {
		if err := s.startCron(ctx); err != nil {
			cancel()
			return err
		}
	} else {
		s.startTicker(ctx)
	}

	// first pass shortly after boot so notifications missed during downtime
	// go out without waiting for the next scheduled slot
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.StartupDelay):
		}
		s.runAll(ctx)
	}()

	return nil
}

func (s *Scheduler) startCron(ctx context.Context) error {
	s.cron = cron.New()
	for _, spec := range s.config.DeadlineCrons {
		if _, err := s.cron.AddFunc(spec, func() { s.run(ctx, "deadlines", s.deadlines) }); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc(s.config.TrialCron, func() { s.run(ctx, "trials", s.trials) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweep scheduler started",
		zap.Strings("deadline_crons", s.config.DeadlineCrons),
		zap.String("trial_cron", s.config.TrialCron))
	return nil
}

func (s *Scheduler) startTicker(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.DevInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runAll(ctx)
			}
		}
	}()
	s.logger.Info("sweep scheduler started in interval mode",
		zap.Duration("interval", s.config.DevInterval))
}

// Stop halts the schedules and waits for in-flight sweeps to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

func (s *Scheduler) runAll(ctx context.Context) {
	s.run(ctx, "deadlines", s.deadlines)
	s.run(ctx, "trials", s.trials)
}

func (s *Scheduler) run(ctx context.Context, name string, sweeper Sweeper) {
	start := time.Now()
	dispatched, err := sweeper.Sweep(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("sweep failed", zap.String("sweep", name), zap.Duration("took", elapsed), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveSweep(name, elapsed, dispatched)
	}
	s.logger.Info("sweep completed",
		zap.String("sweep", name),
		zap.Duration("took", elapsed),
		zap.Int("dispatched", dispatched))
}
