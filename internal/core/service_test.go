package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"
)

// memPersister is an in-memory Persister that can be told to fail.
type memPersister struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	saves   int
}

func newMemPersister() *memPersister {
	return &memPersister{data: make(map[string][]byte)}
}

func (m *memPersister) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memPersister) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func csvSource(name, body string) Source {
	return Source{Name: name, MediaType: "text/csv", Reader: strings.NewReader(body)}
}

func TestStore(t *testing.T) {
	s := NewStore()
	if _, ok := s.Current(); ok {
		t.Fatal("new store should be empty")
	}
	c, _ := Parse("a\n1")
	s.Replace(Snapshot{Collection: c, ImportID: "id-1"})
	got, ok := s.Current()
	if !ok || !reflect.DeepEqual(got, c) {
		t.Errorf("Current() = %v, %v", got, ok)
	}
	snap, _ := s.Snapshot()
	if snap.ImportID != "id-1" {
		t.Errorf("ImportID = %q", snap.ImportID)
	}
}

// ============================================================================
// Import Tests
// ============================================================================

func TestService_Import(t *testing.T) {
	p := newMemPersister()
	svc := NewService(p, Options{})

	res, err := svc.Import(context.Background(), csvSource("janvier.csv", "date,amount\n2024-01-05,800\n2024-01-07,120.5\n"))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Rows != 2 || !reflect.DeepEqual(res.Columns, []string{"date", "amount"}) {
		t.Errorf("result = %+v", res)
	}
	if res.ImportID == "" {
		t.Error("ImportID should be set")
	}

	got, ok := svc.Store().Current()
	if !ok || got.Len() != 2 {
		t.Fatalf("store holds %d records, ok=%v", got.Len(), ok)
	}

	saved, _ := p.Load(context.Background(), StorageKey)
	want := `[{"date":"2024-01-05","amount":"800"},{"date":"2024-01-07","amount":"120.5"}]`
	if string(saved) != want {
		t.Errorf("persisted %s, want %s", saved, want)
	}
}

func TestService_ImportReplacesWholesale(t *testing.T) {
	svc := NewService(newMemPersister(), Options{})
	ctx := context.Background()

	if _, err := svc.Import(ctx, csvSource("a.csv", "x,y\n1,2\n3,4")); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if _, err := svc.Import(ctx, csvSource("b.csv", "z\n9")); err != nil {
		t.Fatalf("second import: %v", err)
	}

	want, _ := Parse("z\n9")
	got, _ := svc.Store().Current()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("store = %v, want %v", got, want)
	}
}

func TestService_ImportFailuresLeaveStoreUntouched(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		saveErr error
		wantErr error
	}{
		{
			name:    "wrong format",
			src:     Source{Name: "budget.xlsx", MediaType: "application/vnd.ms-excel", Reader: strings.NewReader("a\n1")},
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "empty content",
			src:     csvSource("empty.csv", "  \n"),
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "read failure",
			src:     Source{Name: "broken.csv", Reader: iotest.ErrReader(errors.New("io"))},
			wantErr: ErrRead,
		},
		{
			name:    "persist failure",
			src:     csvSource("ok.csv", "a\n2"),
			saveErr: errors.New("disk full"),
			wantErr: ErrPersist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newMemPersister()
			svc := NewService(p, Options{})
			ctx := context.Background()

			if _, err := svc.Import(ctx, csvSource("first.csv", "a\n1")); err != nil {
				t.Fatalf("seed import: %v", err)
			}
			before, _ := svc.Store().Snapshot()
			p.saveErr = tt.saveErr

			_, err := svc.Import(ctx, tt.src)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}

			after, _ := svc.Store().Snapshot()
			if after.ImportID != before.ImportID {
				t.Error("store was replaced by a failed import")
			}
			if p.saves != 1 {
				t.Errorf("saves = %d, want 1", p.saves)
			}
		})
	}
}

func TestService_ImportAsync(t *testing.T) {
	svc := NewService(newMemPersister(), Options{})

	out := <-svc.ImportAsync(context.Background(), csvSource("a.csv", "a\n1"))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Notification.Variant != VariantSuccess {
		t.Errorf("Notification = %+v", out.Notification)
	}

	out = <-svc.ImportAsync(context.Background(), csvSource("a.txt", "a\n1"))
	if out.Notification.Code != "FMT001" {
		t.Errorf("Notification.Code = %q, want FMT001", out.Notification.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestService_ConcurrentImportsLastWriterWins(t *testing.T) {
	p := newMemPersister()
	svc := NewService(p, Options{})

	var outs []<-chan ImportOutcome
	for i := 0; i < 8; i++ {
		outs = append(outs, svc.ImportAsync(context.Background(), csvSource("n.csv", "n\n"+strings.Repeat("x", i+1))))
	}
	for _, ch := range outs {
		if o := <-ch; o.Err != nil {
			t.Fatalf("import failed: %v", o.Err)
		}
	}

	// whichever finished last, store and persisted copy agree
	got, _ := svc.Store().Current()
	saved, _ := p.Load(context.Background(), StorageKey)
	restored, err := UnmarshalCollection(saved)
	if err != nil {
		t.Fatalf("UnmarshalCollection() error = %v", err)
	}
	if !reflect.DeepEqual(got.Records, restored.Records) {
		t.Errorf("store %v and persisted %v diverge", got.Records, restored.Records)
	}
}

func TestService_ImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fevrier.csv")
	if err := os.WriteFile(path, []byte("date,amount\n2024-02-01,42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(newMemPersister(), Options{})
	res, err := svc.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if res.Source != "fevrier.csv" || res.Rows != 1 {
		t.Errorf("result = %+v", res)
	}

	if _, err := svc.ImportFile(context.Background(), filepath.Join(dir, "missing.csv")); !errors.Is(err, ErrRead) {
		t.Errorf("missing file error = %v, want ErrRead", err)
	}
}

// ============================================================================
// Restore and Query Tests
// ============================================================================

func TestService_Restore(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()

	svc := NewService(p, Options{})
	if ok, err := svc.Restore(ctx); ok || err != nil {
		t.Fatalf("Restore() on empty persister = %v, %v", ok, err)
	}

	if _, err := svc.Import(ctx, csvSource("a.csv", "type,amount\nBesoins,12")); err != nil {
		t.Fatal(err)
	}

	fresh := NewService(p, Options{})
	ok, err := fresh.Restore(ctx)
	if !ok || err != nil {
		t.Fatalf("Restore() = %v, %v", ok, err)
	}
	got, _ := fresh.Store().Current()
	want, _ := svc.Store().Current()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored %v, want %v", got, want)
	}
}

func TestService_RestoreIgnoresCorruptData(t *testing.T) {
	p := newMemPersister()
	p.data[StorageKey] = []byte(`{not json`)

	svc := NewService(p, Options{})
	ok, err := svc.Restore(context.Background())
	if ok || err != nil {
		t.Errorf("Restore() = %v, %v; want false, nil", ok, err)
	}
	if _, ok := svc.Store().Current(); ok {
		t.Error("store should stay empty")
	}
}

func TestService_Query(t *testing.T) {
	svc := NewService(newMemPersister(), Options{})
	if res := svc.Query(QueryState{Search: "x"}); res.Total != 0 || res.Shown != 0 {
		t.Errorf("empty store query = %+v", res)
	}

	_, err := svc.Import(context.Background(), csvSource("b.csv",
		"category,amount,type\nLoyer,800,Charges fixes\nCourses,120,Besoins\nCinéma,15,Besoins"))
	if err != nil {
		t.Fatal(err)
	}

	res := svc.Query(QueryState{
		Filters: FilterSpec{"type": NewValueSet("Besoins")},
		Sort:    SortSpec{Key: "amount", Direction: SortAsc},
	})
	if res.Total != 3 || res.Shown != 2 {
		t.Errorf("Total=%d Shown=%d, want 3 and 2", res.Total, res.Shown)
	}
	if res.Collection.Records[0]["category"] != "Cinéma" {
		t.Errorf("first row = %v", res.Collection.Records[0])
	}

	if got := svc.UniqueValues("type"); !reflect.DeepEqual(got, []string{"Charges fixes", "Besoins"}) {
		t.Errorf("UniqueValues = %v", got)
	}
}
