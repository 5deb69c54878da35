// Package scheduler fires the daily sweeps at fixed wall-clock times.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/services"
)

// SweepFunc runs one sweep over every group.
type SweepFunc func(ctx context.Context) (services.SweepReport, error)

// Observer receives the outcome of every completed sweep.
type Observer interface {
	ObserveSweep(sweep string, d time.Duration, notified, failed int)
}

// Job is a sweep bound to its trigger time.
type Job struct {
	Name   string
	Hour   int
	Minute int
	Run    SweepFunc
}

// NextRun returns the first instant strictly after now that falls on
// hour:minute in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

type Daily struct {
	jobs     []Job
	observer Observer
	log      *zap.Logger

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func NewDaily(jobs []Job, observer Observer, log *zap.Logger) *Daily {
	return &Daily{
		jobs:     jobs,
		observer: observer,
		log:      log,
		now:      time.Now,
		after:    time.After,
	}
}

// Run starts one loop per job and blocks until ctx is cancelled and every
// loop has returned. A sweep in flight is allowed to finish.
func (d *Daily) Run(ctx context.Context) {
	done := make(chan struct{}, len(d.jobs))
	for _, job := range d.jobs {
		go func() {
			defer func() { done <- struct{}{} }()
			d.loop(ctx, job)
		}()
	}
	for range d.jobs {
		<-done
	}
}

// loop fires job once per calendar day. The wait is measured on the monotonic
// clock while next is computed on the wall clock, so a wall clock stepped back
// after a sweep would otherwise schedule the same day again.
func (d *Daily) loop(ctx context.Context, job Job) {
	var last string
	for {
		now := d.now()
		next := NextRun(now, job.Hour, job.Minute)
		if next.Format(time.DateOnly) == last {
			next = NextRun(next, job.Hour, job.Minute)
		}
		d.log.Info("Sweep scheduled", zap.String("sweep", job.Name), zap.Time("at", next))
		select {
		case <-ctx.Done():
			return
		case <-d.after(next.Sub(now)):
		}
		last = next.Format(time.DateOnly)
		d.fire(ctx, job)
	}
}

func (d *Daily) fire(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Sweep panicked", zap.String("sweep", job.Name), zap.Any("panic", r))
		}
	}()

	report, err := job.Run(ctx)
	if err != nil {
		d.log.Error("Sweep failed", zap.String("sweep", job.Name), zap.Error(err))
	}
	if d.observer != nil {
		d.observer.ObserveSweep(job.Name, report.Duration, report.Notified, report.Failed)
	}
	d.log.Info("Sweep finished",
		zap.String("sweep", job.Name),
		zap.Int("groups", report.Groups),
		zap.Int("skipped", report.Skipped),
		zap.Int("notified", report.Notified),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
}
