package app

import (
	"context"
	"time"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/core/watcher"
	"depmatrix/internal/shared/observability"
)

// StartWatcher rebuilds on every debounced batch of Python changes below
// the search paths until ctx is done.
func (a *App) StartWatcher(ctx context.Context) error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher != nil {
		return errors.New(errors.CodeConflict, "watcher already running")
	}

	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	w.SetLogger(a.logger)
	if err := w.Watch(a.Config.Paths.Search); err != nil {
		_ = w.Close()
		return err
	}
	a.activeWatcher = w
	a.watchCtx = ctx

	go func() {
		<-ctx.Done()
		a.watchMu.Lock()
		defer a.watchMu.Unlock()
		if a.activeWatcher == w {
			_ = w.Close()
			a.activeWatcher = nil
		}
	}()
	return nil
}

// HandleChanges rebuilds after a batch of file changes. Rebuilds closer
// together than watch.min_interval wait for the limiter.
func (a *App) HandleChanges(paths []string) {
	a.watchMu.Lock()
	ctx := a.watchCtx
	a.watchMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	a.logger.Info("detected changes", "count", len(paths))
	waited, err := a.limiter.Wait(ctx)
	if waited {
		observability.RebuildsThrottledTotal.Inc()
	}
	if err != nil {
		return
	}

	start := time.Now()
	if _, err := a.Build(ctx); err != nil {
		a.logger.Warn("rebuild failed", "error", err)
		a.mu.Lock()
		a.last.Err = err
		a.last.Duration = time.Since(start)
		update := a.last
		a.mu.Unlock()
		a.emitUpdate(update)
		return
	}
	a.emitUpdate(a.CurrentUpdate())
}
