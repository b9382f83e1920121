package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("[cron] "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("[cron] "+msg, append(keysAndValues, "err", err)...)
}

// Schedule runs the pipeline now and then every interval until ctx is done. A tick that fires
// while the previous run is still going is skipped, and a panicking run does not stop the schedule.
func (p *Pipeline) Schedule(ctx context.Context, interval time.Duration) error {
	logger := cronLogger{l: p.logger}
	c := cron.New(cron.WithLogger(logger))

	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		p.RunAndLog(ctx)
	}))
	if _, err := c.AddJob(fmt.Sprintf("@every %s", interval), job); err != nil {
		return fmt.Errorf("schedule pipeline every %s: %w", interval, err)
	}

	p.logger.Info("Starting pipeline schedule", "interval", interval.String())
	first := make(chan struct{})
	go func() {
		defer close(first)
		job.Run()
	}()
	c.Start()

	<-ctx.Done()
	p.logger.Info("Stopping pipeline schedule")
	<-c.Stop().Done()
	<-first
	return nil
}
