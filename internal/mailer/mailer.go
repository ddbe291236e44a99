package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/robfig/cron/v3"
)

// InviteDispatcher sends invites whose email never went out.
type InviteDispatcher interface {
	DispatchPendingInvites(ctx context.Context, limit int) (int, error)
}

// Mailer retries unsent invite emails on a cron schedule.
type Mailer struct {
	invites  InviteDispatcher
	logger   *slog.Logger
	schedule cron.Schedule
	spec     string
	batch    int
}

func New(invites InviteDispatcher, logger *slog.Logger, spec string, batch int) (*Mailer, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse mailer schedule %q: %w", spec, err)
	}
	if batch <= 0 {
		return nil, fmt.Errorf("mailer batch must be positive, got %d", batch)
	}
	return &Mailer{
		invites:  invites,
		logger:   logger.With("component", "mailer"),
		schedule: schedule,
		spec:     spec,
		batch:    batch,
	}, nil
}

// Start runs cycles until ctx is cancelled, then waits for the running one.
func (m *Mailer) Start(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{m.logger})))
	c.Schedule(m.schedule, cron.FuncJob(func() { m.RunOnce(ctx) }))
	c.Start()

	m.logger.Info("mailer started", "schedule", m.spec, "batch", m.batch, "next_run", m.Next(time.Now()))

	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("mailer shut down")
}

// RunOnce sends one batch of pending invites.
func (m *Mailer) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	defer func() {
		metrics.MailerCycleDuration.Observe(time.Since(start).Seconds())
	}()

	sent, err := m.invites.DispatchPendingInvites(ctx, m.batch)
	if err != nil {
		m.logger.Error("dispatch pending invites", "error", err, "sent", sent)
		return
	}
	if sent > 0 {
		m.logger.Info("mailer sent invites", "count", sent)
	}
}

// Next reports when the cycle after t is due.
func (m *Mailer) Next(t time.Time) time.Time {
	return m.schedule.Next(t)
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
