// Package scheduler runs the periodic maintenance jobs of the server.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper is a job that processes a batch and reports how many rows it
// touched. marketplace.Service.ExpireOffers is one.
type Sweeper func(ctx context.Context) (int, error)

// Scheduler wraps a cron runner whose jobs never overlap themselves.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// New creates a scheduler. Each run gets a context bounded by timeout.
func New(timeout time.Duration) *Scheduler {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		timeout: timeout,
	}
}

// Add registers fn under name on the cron spec, e.g. "@every 1m".
func (s *Scheduler) Add(spec, name string, fn Sweeper) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	return err
}

func (s *Scheduler) run(name string, fn Sweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	n, err := fn(ctx)
	fields := logrus.Fields{"job": name, "rows": n, "took": time.Since(start).String()}
	if err != nil {
		logrus.WithFields(fields).WithField("error", err.Error()).Error("Scheduled job failed")
		return
	}
	if n > 0 {
		logrus.WithFields(fields).Info("Scheduled job finished")
	}
}

// Start launches the runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
