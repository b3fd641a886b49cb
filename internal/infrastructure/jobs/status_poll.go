package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"oft-bridge.backend/pkg/logger"
)

// Ticker is the unit of work run on every poll interval.
type Ticker interface {
	Tick(ctx context.Context)
}

// StatusPollJob drives a Ticker on a fixed interval. The first tick runs
// immediately; the loop ends on context cancellation or Stop.
type StatusPollJob struct {
	name     string
	ticker   Ticker
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewStatusPollJob(name string, ticker Ticker, interval time.Duration) *StatusPollJob {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatusPollJob{
		name:     name,
		ticker:   ticker,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (j *StatusPollJob) Start(ctx context.Context) {
	defer close(j.done)
	logger.Debug(ctx, "status poll started", zap.String("job", j.name), zap.Duration("interval", j.interval))

	t := time.NewTicker(j.interval)
	defer t.Stop()

	j.ticker.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "status poll stopped (context cancelled)", zap.String("job", j.name))
			return
		case <-j.stop:
			logger.Debug(ctx, "status poll stopped", zap.String("job", j.name))
			return
		case <-t.C:
			j.ticker.Tick(ctx)
		}
	}
}

// Stop is safe to call more than once.
func (j *StatusPollJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// Done is closed once Start has returned.
func (j *StatusPollJob) Done() <-chan struct{} {
	return j.done
}
