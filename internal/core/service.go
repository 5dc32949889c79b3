package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/finboard/internal/logging"
	"github.com/google/uuid"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	MaxSourceSize int64         // bytes read per source (default 100MB)
	Timeout       time.Duration // per import, 0 for none
	StorageKey    string        // persisted key (default StorageKey)
}

// Service ties the import pipeline to the Store and its persisted copy.
type Service struct {
	store     *Store
	persister Persister
	opts      Options

	// commitMu orders persist+replace pairs so the Store and the persisted
	// value always hold the same, most recently completed import.
	commitMu sync.Mutex
	inflight sync.WaitGroup
}

// ImportOutcome is delivered by ImportAsync.
type ImportOutcome struct {
	Result       ImportResult
	Err          error
	Notification Notification
}

// NewService creates a Service over persister with an empty Store.
func NewService(persister Persister, opts Options) *Service {
	if opts.MaxSourceSize <= 0 {
		opts.MaxSourceSize = DefaultMaxSourceSize
	}
	if opts.StorageKey == "" {
		opts.StorageKey = StorageKey
	}
	return &Service{
		store:     NewStore(),
		persister: persister,
		opts:      opts,
	}
}

// Store returns the store the service writes to.
func (s *Service) Store() *Store {
	return s.store
}

// Import validates, reads and parses src, then saves the result and makes
// it the active collection. On any failure the Store is left untouched.
func (s *Service) Import(ctx context.Context, src Source) (ImportResult, error) {
	start := time.Now()
	logger := logging.WithFields(ctx,
		"source", src.Name,
		"trigger", TriggerFromContext(ctx),
	)
	if ip := ClientIPFromContext(ctx); ip != "" {
		logger = logger.With("ip", ip)
	}

	if err := ValidateSource(src.Name, src.MediaType); err != nil {
		logger.Warn("import rejected", "media_type", src.MediaType, "error", err)
		return ImportResult{}, err
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	read := <-ReadSource(ctx, src.Reader, s.opts.MaxSourceSize)
	if read.Err != nil {
		logger.Error("import read failed", "error", read.Err)
		return ImportResult{}, read.Err
	}

	coll, err := Parse(read.Text)
	if err != nil {
		logger.Warn("import rejected", "error", err)
		return ImportResult{}, err
	}

	snap := Snapshot{
		Collection: coll,
		ImportID:   uuid.NewString(),
		Source:     src.Name,
		ImportedAt: time.Now().UTC(),
	}
	if err := s.commit(ctx, snap); err != nil {
		logger.Error("import commit failed", "import_id", snap.ImportID, "error", err)
		return ImportResult{}, err
	}

	res := ImportResult{
		ImportID: snap.ImportID,
		Source:   src.Name,
		Columns:  coll.Schema.Columns(),
		Rows:     coll.Len(),
		Duration: time.Since(start),
	}
	logger.Info("import completed",
		"import_id", res.ImportID,
		"rows", res.Rows,
		"columns", len(res.Columns),
		"bytes", read.Bytes,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ImportAsync runs Import in its own goroutine and delivers one outcome.
// Concurrent imports are neither queued nor cancelled; the last to finish
// is the one left in the Store.
func (s *Service) ImportAsync(ctx context.Context, src Source) <-chan ImportOutcome {
	out := make(chan ImportOutcome, 1)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(out)

		res, err := s.Import(ctx, src)
		o := ImportOutcome{Result: res, Err: err}
		if err != nil {
			o.Notification = Notify(err)
		} else {
			o.Notification = Success(res)
		}
		out <- o
	}()
	return out
}

// ImportFile imports the file at path.
func (s *Service) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	name := filepath.Base(path)
	if err := ValidateSource(name, mime.TypeByExtension(filepath.Ext(path))); err != nil {
		return ImportResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return s.Import(ctx, Source{
		Name:      name,
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		Reader:    f,
		Size:      size,
	})
}

// Wait blocks until every ImportAsync call has delivered its outcome or ctx
// is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) commit(ctx context.Context, snap Snapshot) error {
	data, err := MarshalCollection(snap.Collection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.persister.Save(ctx, s.opts.StorageKey, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.store.Replace(snap)
	return nil
}

// Restore loads the persisted collection into the Store. It reports false
// when nothing was saved yet. Unreadable persisted data is logged and
// ignored so the session starts empty.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	data, err := s.persister.Load(ctx, s.opts.StorageKey)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", s.opts.StorageKey, err)
	}

	coll, err := UnmarshalCollection(data)
	if err != nil {
		slog.Warn("persisted data unreadable, starting empty",
			"key", s.opts.StorageKey,
			"error", err,
		)
		return false, nil
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if _, ok := s.store.Current(); ok {
		// an import finished first; it is newer than what was saved
		return false, nil
	}
	s.store.Replace(Snapshot{
		Collection: coll,
		ImportID:   uuid.NewString(),
		Source:     TriggerRestore,
		ImportedAt: time.Now().UTC(),
	})
	logging.WithFields(ctx, "trigger", TriggerRestore).Info("collection restored",
		"rows", coll.Len(),
		"columns", len(coll.Schema.Columns()),
	)
	return true, nil
}

// Query computes the view of the active collection for q.
func (s *Service) Query(q QueryState) QueryResult {
	coll, _ := s.store.Current()
	return Evaluate(coll, q)
}

// UniqueValues returns the distinct values of column in the active collection.
func (s *Service) UniqueValues(column string) []string {
	coll, _ := s.store.Current()
	return UniqueValues(coll, column)
}

// Snapshot returns the active snapshot.
func (s *Service) Snapshot() (Snapshot, bool) {
	return s.store.Snapshot()
}
