package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce is used when a Watcher is given no debounce.
const DefaultDebounce = 500 * time.Millisecond

// Watcher runs a Scanner when .csv files appear in its directory and on a
// cron schedule.
type Watcher struct {
	scanner  *Scanner
	schedule string
	debounce time.Duration
}

// NewWatcher creates a Watcher. An empty schedule disables periodic scans.
func NewWatcher(scanner *Scanner, schedule string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{scanner: scanner, schedule: schedule, debounce: debounce}
}

// Run scans once, then keeps scanning until ctx is cancelled. It returns an
// error only when the watch cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.scanner.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.scanner.Dir(), err)
	}

	var (
		mu     sync.Mutex
		closed bool
		scans  sync.WaitGroup
	)
	scan := func(reason string) {
		mu.Lock()
		if closed {
			mu.Unlock()
			return
		}
		scans.Add(1)
		mu.Unlock()
		defer scans.Done()

		report, err := w.scanner.Scan(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			slog.Info("import scan interrupted", "reason", reason, "imported", report.Imported)
		case err != nil:
			slog.Error("import scan failed", "reason", reason, "error", err)
		case report.Skipped:
			slog.Debug("import scan skipped, previous scan still running", "reason", reason)
		}
	}

	var sched *cron.Cron
	if w.schedule != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(w.schedule, func() { scan("schedule") }); err != nil {
			return fmt.Errorf("invalid scan schedule %q: %w", w.schedule, err)
		}
		sched.Start()
	}

	slog.Info("import watcher started",
		"dir", w.scanner.Dir(),
		"schedule", w.schedule,
		"debounce_ms", w.debounce.Milliseconds(),
	)
	go scan("startup")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if sched != nil {
			<-sched.Stop().Done()
		}
		mu.Lock()
		closed = true
		mu.Unlock()
		scans.Wait()
		slog.Info("import watcher stopped", "dir", w.scanner.Dir())
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isCSV(filepath.Base(event.Name)) {
				continue
			}
			// wait for the writer to finish before scanning
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { scan("file event") })
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("import watcher error", "error", err)
		}
	}
}
