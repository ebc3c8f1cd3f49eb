package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	applog "fintrack/internal/log"
)

// Refresher is anything that can rebuild every export.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// RefreshConfig holds configuration for the periodic refresh loop.
type RefreshConfig struct {
	// Interval between full refreshes (default: 10m)
	Interval time.Duration

	// RunOnStart triggers a refresh as soon as the loop starts
	RunOnStart bool
}

func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:   10 * time.Minute,
		RunOnStart: true,
	}
}

// RefreshLoop periodically re-exports every owner as a backstop for lost
// AMQP messages.
type RefreshLoop struct {
	target Refresher
	config RefreshConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRefreshLoop(target Refresher, config RefreshConfig) *RefreshLoop {
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshConfig().Interval
	}
	return &RefreshLoop{target: target, config: config}
}

var errAlreadyRunning = errors.New("refresh loop is already running")

// Start begins the loop. Returns an error if already running.
func (l *RefreshLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errAlreadyRunning
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)

	slog.InfoContext(ctx, "Refresh loop started",
		applog.FieldComponent, applog.ComponentWorker,
		"interval", l.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current refresh to finish.
func (l *RefreshLoop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	stopCh, doneCh := l.stopCh, l.doneCh
	l.running = false
	l.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Refresh loop stopped gracefully", applog.FieldComponent, applog.ComponentWorker)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh loop stop timed out", applog.FieldComponent, applog.ComponentWorker)
		return ctx.Err()
	}
}

func (l *RefreshLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Run starts the loop and blocks until ctx is cancelled.
func (l *RefreshLoop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return l.Stop(stopCtx)
}

func (l *RefreshLoop) run(ctx context.Context) {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	if l.config.RunOnStart {
		l.refresh(ctx)
	}

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.refresh(ctx)
		}
	}
}

func (l *RefreshLoop) refresh(ctx context.Context) {
	if err := l.target.RefreshAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic refresh failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldError, err)
	}
}
