// Package scheduler drives periodic autosave of dirty documents on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Saver is the interface the autosaver flushes through. Satisfied by the
// workspace (avoids import cycle).
type Saver interface {
	SaveDirty(ctx context.Context) (int, error)
}

// Autosaver saves dirty documents whenever its cron schedule fires. The
// check runs on a coarse ticker; saves happen between serving operations so
// editing never observes a half-written document.
type Autosaver struct {
	saver    Saver
	parser   cron.Parser
	schedule cron.Schedule
	expr     string
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	next   time.Time
}

// NewAutosaver creates an autosaver for the given standard 5-field cron
// expression. The expression is parsed eagerly so a bad schedule fails at
// startup.
func NewAutosaver(saver Saver, cronExpr string, logger *slog.Logger) (*Autosaver, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return &Autosaver{
		saver:    saver,
		parser:   parser,
		schedule: schedule,
		expr:     cronExpr,
		logger:   logger,
	}, nil
}

// Start launches the background autosave loop with a 30s ticker.
func (a *Autosaver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return fmt.Errorf("autosaver already started")
	}

	saveCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.next = a.schedule.Next(time.Now().UTC())
	a.mu.Unlock()

	go a.loop(saveCtx)
	a.logger.Info("autosaver started", slog.String("schedule", a.expr))
	return nil
}

func (a *Autosaver) loop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx, time.Now().UTC())
		}
	}
}

// tick saves when the schedule has fired since the last check.
func (a *Autosaver) tick(ctx context.Context, now time.Time) {
	a.mu.Lock()
	due := !now.Before(a.next)
	if due {
		a.next = a.schedule.Next(now)
	}
	a.mu.Unlock()
	if !due {
		return
	}

	saved, err := a.saver.SaveDirty(ctx)
	if err != nil {
		a.logger.Error("autosave failed", slog.String("error", err.Error()))
		return
	}
	if saved > 0 {
		a.logger.Info("autosave complete", slog.Int("documents", saved))
	}
}

// NextRun reports when the schedule fires next. Before Start it is computed
// from the current time.
func (a *Autosaver) NextRun() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next.IsZero() {
		return a.schedule.Next(time.Now().UTC())
	}
	return a.next
}

// Stop gracefully shuts down the autosaver.
func (a *Autosaver) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return nil
	}

	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	a.logger.Info("autosaver stopped")
	return nil
}
