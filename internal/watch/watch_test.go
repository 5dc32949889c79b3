package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/finboard/internal/core"
	"github.com/JonMunkholm/finboard/internal/storage"
)

// recordingImporter remembers the order files were imported in.
type recordingImporter struct {
	mu    sync.Mutex
	names []string
	fail  map[string]bool

	// when set, ImportFile signals started and waits for block
	started chan struct{}
	block   chan struct{}
}

func (r *recordingImporter) ImportFile(ctx context.Context, path string) (core.ImportResult, error) {
	if r.block != nil {
		r.started <- struct{}{}
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := filepath.Base(path)
	r.names = append(r.names, name)
	if r.fail[name] {
		return core.ImportResult{}, core.ErrInvalidFormat
	}
	if got := core.TriggerFromContext(ctx); got != core.TriggerWatch {
		return core.ImportResult{}, errors.New("trigger " + got)
	}
	return core.ImportResult{Source: name}, nil
}

func (r *recordingImporter) imported() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func writeFile(t *testing.T, dir, name, body string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ============================================================================
// Scanner Tests
// ============================================================================

func TestScanner_OldestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFile(t, dir, "mars.csv", "a\n3", base.Add(3*time.Minute))
	writeFile(t, dir, "janvier.csv", "a\n1", base.Add(1*time.Minute))
	writeFile(t, dir, "FEVRIER.CSV", "a\n2", base.Add(2*time.Minute))
	writeFile(t, dir, "notes.txt", "ignored", base)
	writeFile(t, dir, ".hidden.csv", "ignored", base)

	imp := &recordingImporter{}
	s := NewScanner(imp, dir, "imported")

	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Imported != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}

	want := []string{"janvier.csv", "FEVRIER.CSV", "mars.csv"}
	if got := imp.imported(); !reflect.DeepEqual(got, want) {
		t.Errorf("import order = %v, want %v", got, want)
	}
	for _, name := range want {
		if exists(filepath.Join(dir, name)) || !exists(filepath.Join(dir, "imported", name)) {
			t.Errorf("%s was not archived", name)
		}
	}
	if !exists(filepath.Join(dir, "notes.txt")) {
		t.Error("non-csv file should stay put")
	}

	// nothing left for a second pass
	report, _ = s.Scan(context.Background())
	if report.Imported != 0 {
		t.Errorf("second pass imported %d files", report.Imported)
	}
}

func TestScanner_FailedFilesAreSetAside(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.csv", "", time.Now())

	imp := &recordingImporter{fail: map[string]bool{"bad.csv": true}}
	report, err := NewScanner(imp, dir, "imported").Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if !exists(filepath.Join(dir, FailedDir, "bad.csv")) {
		t.Error("failed file should move to the failed directory")
	}
}

// cancellingImporter cancels the scan while an import is reading, the way
// shutdown does, and fails the way an interrupted read does.
type cancellingImporter struct {
	cancel context.CancelFunc
}

func (c cancellingImporter) ImportFile(ctx context.Context, _ string) (core.ImportResult, error) {
	c.cancel()
	<-ctx.Done()
	return core.ImportResult{}, fmt.Errorf("%w: %w", core.ErrRead, ctx.Err())
}

func TestScanner_CancelledImportStaysPending(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "janvier.csv", "a\n1", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := NewScanner(cancellingImporter{cancel}, dir, "imported").Scan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
	if report.Failed != 0 {
		t.Errorf("report = %+v, want no failures", report)
	}
	if !exists(filepath.Join(dir, "janvier.csv")) {
		t.Error("interrupted file should stay in the watched directory")
	}
	if exists(filepath.Join(dir, FailedDir, "janvier.csv")) {
		t.Error("interrupted file must not be set aside as failed")
	}
}

func TestScanner_NameCollision(t *testing.T) {
	dir := t.TempDir()
	archive := t.TempDir()
	writeFile(t, archive, "janvier.csv", "old", time.Now())
	writeFile(t, dir, "janvier.csv", "a\n1", time.Now())

	if _, err := NewScanner(&recordingImporter{}, dir, archive).Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(archive)
	if len(entries) != 2 {
		t.Errorf("archive holds %d files, want 2", len(entries))
	}
}

func TestScanner_SkipsOverlappingPass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "a\n1", time.Now())

	imp := &recordingImporter{started: make(chan struct{}), block: make(chan struct{})}
	s := NewScanner(imp, dir, "imported")

	done := make(chan ScanReport)
	go func() {
		r, _ := s.Scan(context.Background())
		done <- r
	}()

	<-imp.started

	report, err := s.Scan(context.Background())
	if err != nil || !report.Skipped {
		t.Errorf("overlapping Scan() = %+v, %v; want skipped", report, err)
	}

	close(imp.block)
	if r := <-done; r.Imported != 1 {
		t.Errorf("first pass = %+v", r)
	}
}

func TestScanner_MissingDir(t *testing.T) {
	s := NewScanner(&recordingImporter{}, filepath.Join(t.TempDir(), "nope"), "imported")
	if _, err := s.Scan(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

// ============================================================================
// Watcher Tests
// ============================================================================

func TestWatcher_ImportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	svc := core.NewService(storage.NewMemory(), core.Options{})
	w := NewWatcher(NewScanner(svc, dir, "imported"), "", 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	// give the watch a moment to register
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "avril.csv"), []byte("category,amount\nLoyer,800\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if snap, ok := svc.Snapshot(); ok {
			if snap.Source != "avril.csv" || snap.Collection.Len() != 1 {
				t.Errorf("snapshot = %+v", snap)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("file was never imported")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWatcher_InvalidSchedule(t *testing.T) {
	w := NewWatcher(NewScanner(&recordingImporter{}, t.TempDir(), "imported"), "every tuesday", 0)
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
