// Package watch imports CSV files dropped into a directory.
//
// A Scanner does one pass over the directory; a Watcher triggers passes on
// file events and on a cron schedule. Imported files are moved out of the
// way so each file is imported once.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/finboard/internal/core"
	"github.com/JonMunkholm/finboard/internal/logging"
)

// FailedDir receives files whose import failed, relative to the watched directory.
const FailedDir = "failed"

// Importer imports one file. *core.Service implements it.
type Importer interface {
	ImportFile(ctx context.Context, path string) (core.ImportResult, error)
}

// Scanner imports the .csv files found in Dir.
type Scanner struct {
	importer Importer
	dir      string
	archive  string

	// running guards against overlapping passes.
	running sync.Mutex
}

// ScanReport summarizes one pass.
type ScanReport struct {
	Imported int
	Failed   int
	Skipped  bool // another pass was running
}

// NewScanner creates a Scanner over dir. Imported files are moved to
// archiveDir, which is relative to dir unless absolute.
func NewScanner(importer Importer, dir, archiveDir string) *Scanner {
	if !filepath.IsAbs(archiveDir) {
		archiveDir = filepath.Join(dir, archiveDir)
	}
	return &Scanner{importer: importer, dir: dir, archive: archiveDir}
}

// Dir returns the watched directory.
func (s *Scanner) Dir() string { return s.dir }

// Scan imports every pending file, oldest modification time first, so the
// newest file is the one left in the store. A pass that finds another pass
// running returns immediately with Skipped set.
func (s *Scanner) Scan(ctx context.Context) (ScanReport, error) {
	if !s.running.TryLock() {
		return ScanReport{Skipped: true}, nil
	}
	defer s.running.Unlock()

	files, err := s.pending()
	if err != nil {
		return ScanReport{}, err
	}

	var report ScanReport
	ctx = core.ContextWithTrigger(ctx, core.TriggerWatch)
	logger := logging.WithFields(ctx, "dir", s.dir)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dest := s.archive
		if _, err := s.importer.ImportFile(ctx, path); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// interrupted, not broken: the next pass picks it up again
				return report, ctxErr
			}
			report.Failed++
			dest = filepath.Join(s.dir, FailedDir)
			logger.Warn("watched file not imported",
				"file", filepath.Base(path),
				"notification", core.Notify(err).Code,
				"error", err,
			)
		} else {
			report.Imported++
		}

		if err := moveInto(path, dest); err != nil {
			// leaving it in place would import it again on every pass
			return report, fmt.Errorf("move %s: %w", filepath.Base(path), err)
		}
	}

	if len(files) > 0 {
		logger.Info("scan completed", "imported", report.Imported, "failed", report.Failed)
	}
	return report, nil
}

type pendingFile struct {
	path    string
	modTime time.Time
}

// pending lists regular .csv files in dir ordered by modification time.
func (s *Scanner) pending() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}

	var files []pendingFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		files = append(files, pendingFile{filepath.Join(s.dir, e.Name()), info.ModTime()})
	}

	slices.SortFunc(files, func(a, b pendingFile) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv") && !strings.HasPrefix(name, ".")
}

// moveInto renames path into dir, adding a timestamp when the name is taken.
func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := filepath.Base(path)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		stamp := time.Now().UTC().Format("20060102T150405.000000000")
		dest = filepath.Join(dir, strings.TrimSuffix(name, ext)+"_"+stamp+ext)
	}
	return os.Rename(path, dest)
}
