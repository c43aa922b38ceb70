package services

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/remote"
	"github.com/tbourn/go-roadmap-replica/internal/repo"
)

// ----- Fakes -----

// fakeSource serves its records filtered by modified >= since, in one page.
type fakeSource struct {
	mu      sync.Mutex
	records []domain.Record
	skipped int
	err     error
	calls   []domain.Timestamp

	// When block is set, Pages signals entered and waits on block.
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (f *fakeSource) Pages(ctx context.Context, since domain.Timestamp, pageSize int) iter.Seq2[remote.Page, error] {
	return func(yield func(remote.Page, error) bool) {
		f.mu.Lock()
		f.calls = append(f.calls, since)
		recs := append([]domain.Record(nil), f.records...)
		f.mu.Unlock()

		if f.block != nil {
			f.once.Do(func() { close(f.entered) })
			<-f.block
		}
		if f.err != nil {
			yield(remote.Page{}, f.err)
			return
		}
		var out []domain.Record
		for _, r := range recs {
			if !r.ModifiedAt.Before(since.Time) {
				out = append(out, r)
			}
		}
		if len(out) == 0 && f.skipped == 0 {
			return
		}
		yield(remote.Page{Records: out, Skipped: f.skipped}, nil)
	}
}

func (f *fakeSource) add(r ...domain.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r...)
}

func (f *fakeSource) lastSince() domain.Timestamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeConverter upper-cases input and fails (or panics) on chosen inputs.
type fakeConverter struct {
	failOn  string
	panicOn string
}

func (c fakeConverter) Convert(src string) (string, error) {
	if c.panicOn != "" && src == c.panicOn {
		panic("converter blew up")
	}
	if c.failOn != "" && src == c.failOn {
		return "", errors.New("bad markup")
	}
	return strings.ToUpper(src), nil
}

// ----- Helpers -----

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func mustTS(t *testing.T, s string) domain.Timestamp {
	t.Helper()
	ts, err := domain.ParseTimestamp(s)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q): %v", s, err)
	}
	return ts
}

func rec(t *testing.T, id, modified string) domain.Record {
	t.Helper()
	return domain.Record{
		ID:          id,
		Title:       "Title " + id,
		Description: "<p>" + id + "</p>",
		CreatedAt:   mustTS(t, "2024-01-01T00:00:00Z"),
		ModifiedAt:  mustTS(t, modified),
		Tags:        []string{"Web"},
	}
}

func newSync(db *gorm.DB, src Source) *SyncService {
	return &SyncService{
		DB:        db,
		Source:    src,
		Converter: fakeConverter{},
		Log:       zerolog.Nop(),
		KeepRuns:  50,
	}
}

func checkpoint(t *testing.T, db *gorm.DB) *domain.SyncCheckpoint {
	t.Helper()
	cp, err := repo.GetCheckpoint(context.Background(), db)
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	return cp
}

func count(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	n, err := repo.CountRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	return n
}

// ----- Tests -----

func TestRun_WritesBatchAndAdvancesCheckpoint(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{skipped: 1}
	src.add(rec(t, "1", "2025-01-01T00:00:00Z"), rec(t, "2", "2025-01-03T00:00:00Z"), rec(t, "3", "2025-01-02T00:00:00Z"))
	s := newSync(db, src)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped || res.Fetched != 3 || res.Written != 3 || res.Dropped != 1 || res.RunID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !src.lastSince().Equal(domain.Epoch) {
		t.Fatalf("first pass should start at the epoch, got %s", src.lastSince())
	}

	cp := checkpoint(t, db)
	if cp.Status != domain.SyncStatusSuccess || cp.RecordCount != 3 || cp.LastError != "" || cp.LastSuccessAt.IsZero() {
		t.Fatalf("checkpoint not marked success: %+v", cp)
	}
	if want := mustTS(t, "2025-01-03T00:00:00Z"); !cp.LastSyncTimestamp.Equal(want) {
		t.Fatalf("checkpoint = %s; want %s", cp.LastSyncTimestamp, want)
	}

	r, err := repo.GetRecord(context.Background(), db, "2")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.DescriptionMarkdown != "<P>2</P>" {
		t.Fatalf("markdown not derived at ingest: %q", r.DescriptionMarkdown)
	}

	runs, err := repo.ListSyncRuns(context.Background(), db, 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListSyncRuns = %v, %v", runs, err)
	}
	if runs[0].ID != res.RunID || runs[0].Status != domain.SyncStatusSuccess || runs[0].Written != 3 || runs[0].Skipped != 1 {
		t.Fatalf("run history unexpected: %+v", runs[0])
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{}
	src.add(rec(t, "1", "2025-01-01T00:00:00Z"), rec(t, "2", "2025-01-02T00:00:00Z"))
	s := newSync(db, src)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before, _ := repo.GetRecord(context.Background(), db, "2")
	first := checkpoint(t, db).LastSyncTimestamp

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	// The boundary record is fetched again and rewritten unchanged.
	if res.Fetched != 1 || res.Written != 1 {
		t.Fatalf("second pass should refetch only the boundary record: %+v", res)
	}
	if n := count(t, db); n != 2 {
		t.Fatalf("count = %d; want 2", n)
	}
	if cp := checkpoint(t, db); !cp.LastSyncTimestamp.Equal(first) {
		t.Fatalf("checkpoint moved: %s -> %s", first, cp.LastSyncTimestamp)
	}
	after, _ := repo.GetRecord(context.Background(), db, "2")
	if before.Title != after.Title || before.DescriptionMarkdown != after.DescriptionMarkdown || !before.ModifiedAt.Equal(after.ModifiedAt) {
		t.Fatalf("record changed across identical passes: %+v vs %+v", before, after)
	}
}

func TestRun_InclusiveCheckpointBoundary(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{}
	src.add(rec(t, "A", "2025-01-10T12:00:00Z"))
	s := newSync(db, src)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A second record lands with exactly the checkpoint timestamp.
	src.add(rec(t, "B", "2025-01-10T12:00:00Z"))
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !src.lastSince().Equal(mustTS(t, "2025-01-10T12:00:00Z")) {
		t.Fatalf("second pass since = %s", src.lastSince())
	}
	if _, err := repo.GetRecord(context.Background(), db, "B"); err != nil {
		t.Fatalf("record at the boundary was missed: %v", err)
	}
}

func TestRun_SecondCallerSkipsWhileLocked(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{block: make(chan struct{}), entered: make(chan struct{})}
	src.add(rec(t, "1", "2025-01-01T00:00:00Z"))
	s := newSync(db, src)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()
	<-src.entered

	other := newSync(db, &fakeSource{})
	res, err := other.Run(context.Background())
	if err != nil {
		t.Fatalf("concurrent Run should not error: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("concurrent Run should be skipped: %+v", res)
	}
	if cp := checkpoint(t, db); cp.Status != domain.SyncStatusInProgress {
		t.Fatalf("status during pass = %s", cp.Status)
	}

	close(src.block)
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if cp := checkpoint(t, db); cp.Status != domain.SyncStatusSuccess {
		t.Fatalf("status after pass = %s", cp.Status)
	}
	runs, _ := repo.ListSyncRuns(context.Background(), db, 10)
	if len(runs) != 1 {
		t.Fatalf("skipped pass must not write history, got %d runs", len(runs))
	}
}

func TestRun_TakesOverAbandonedLock(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, err := repo.AcquireSyncLock(ctx, db, domain.NewTimestamp(base), domain.NewTimestamp(base.Add(-time.Hour)))
	if err != nil || !ok {
		t.Fatalf("seed lock: %v %v", ok, err)
	}

	s := newSync(db, &fakeSource{})
	s.LockTTL = time.Hour
	s.Now = func() time.Time { return base.Add(30 * time.Minute) }
	if res, err := s.Run(ctx); err != nil || !res.Skipped {
		t.Fatalf("fresh lock should be respected: %+v %v", res, err)
	}

	s.Now = func() time.Time { return base.Add(2 * time.Hour) }
	res, err := s.Run(ctx)
	if err != nil || res.Skipped {
		t.Fatalf("abandoned lock should be taken over: %+v %v", res, err)
	}
	if cp := checkpoint(t, db); cp.Status != domain.SyncStatusSuccess {
		t.Fatalf("status = %s", cp.Status)
	}
}

func TestRun_RollsBackWhenLastRecordFails(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{}
	src.add(rec(t, "0", "2025-01-01T00:00:00Z"))
	s := newSync(db, src)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("seed Run: %v", err)
	}
	prior := checkpoint(t, db)

	src.add(rec(t, "1", "2025-02-01T00:00:00Z"), rec(t, "2", "2025-02-02T00:00:00Z"), rec(t, "3", "2025-02-03T00:00:00Z"))
	s.Converter = fakeConverter{failOn: "<p>3</p>"}

	res, err := s.Run(context.Background())
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if res.Written != 0 {
		t.Fatalf("failed pass reported writes: %+v", res)
	}
	if n := count(t, db); n != 1 {
		t.Fatalf("partial batch leaked: count = %d", n)
	}
	cp := checkpoint(t, db)
	if cp.Status != domain.SyncStatusFailed || !strings.Contains(cp.LastError, "bad markup") {
		t.Fatalf("checkpoint not marked failed: %+v", cp)
	}
	if !cp.LastSyncTimestamp.Equal(prior.LastSyncTimestamp) {
		t.Fatalf("checkpoint timestamp moved on failure: %s", cp.LastSyncTimestamp)
	}

	// The lock was released; a clean retry covers the same window.
	s.Converter = fakeConverter{}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if n := count(t, db); n != 4 {
		t.Fatalf("count after retry = %d", n)
	}
}

func TestRun_RemoteErrorAndPanicAreRecorded(t *testing.T) {
	db := newServiceDB(t)
	s := newSync(db, &fakeSource{err: &remote.StatusError{StatusCode: 503}})

	if _, err := s.Run(context.Background()); !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if cp := checkpoint(t, db); cp.Status != domain.SyncStatusFailed || !cp.LastSyncTimestamp.Equal(domain.Epoch) {
		t.Fatalf("checkpoint after remote error: %+v", cp)
	}

	src := &fakeSource{}
	src.add(rec(t, "1", "2025-01-01T00:00:00Z"))
	s.Source = src
	s.Converter = fakeConverter{panicOn: "<p>1</p>"}
	_, err := s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("panic should surface as an error, got %v", err)
	}
	if cp := checkpoint(t, db); cp.Status != domain.SyncStatusFailed {
		t.Fatalf("status after panic = %s", cp.Status)
	}

	runs, _ := repo.ListSyncRuns(context.Background(), db, 10)
	if len(runs) != 2 || runs[0].Status != domain.SyncStatusFailed || runs[0].Error == "" {
		t.Fatalf("failed runs not recorded: %+v", runs)
	}
}

func TestRun_RetentionDropsOldRecordsButNotCheckpoint(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{}
	src.add(rec(t, "old", "2023-06-01T00:00:00Z"), rec(t, "new", "2025-01-01T00:00:00Z"))
	s := newSync(db, src)
	s.RetentionCutoff = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Written != 1 || res.Dropped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := repo.GetRecord(context.Background(), db, "old"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("record before cutoff should be dropped, got %v", err)
	}
}

func TestRun_DuplicateIDsKeepNewestVersion(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{}
	newer := rec(t, "dup", "2025-01-05T00:00:00Z")
	newer.Title = "newer"
	older := rec(t, "dup", "2025-01-02T00:00:00Z")
	older.Title = "older"
	src.add(newer, older)

	res, err := newSync(db, src).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Fetched != 1 {
		t.Fatalf("duplicates should collapse: %+v", res)
	}
	r, _ := repo.GetRecord(context.Background(), db, "dup")
	if r.Title != "newer" {
		t.Fatalf("title = %q; want newer", r.Title)
	}
}

func TestTriggerIfStale(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{}
	src.add(rec(t, "1", "2025-01-01T00:00:00Z"))
	s := newSync(db, src)

	// Never synced: always stale.
	if !s.TriggerIfStale(context.Background(), time.Hour) {
		t.Fatalf("never-synced replica should trigger")
	}
	s.Wait()
	if n := count(t, db); n != 1 {
		t.Fatalf("background pass did not write: %d", n)
	}

	if s.TriggerIfStale(context.Background(), time.Hour) {
		t.Fatalf("fresh replica should not trigger")
	}

	s.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if !s.TriggerIfStale(context.Background(), time.Hour) {
		t.Fatalf("stale replica should trigger")
	}
	s.Wait()
}

func TestTrigger_OnePassInFlight(t *testing.T) {
	db := newServiceDB(t)
	src := &fakeSource{block: make(chan struct{}), entered: make(chan struct{})}
	s := newSync(db, src)

	ctx, cancel := context.WithCancel(context.Background())
	if !s.Trigger(ctx) {
		t.Fatalf("first Trigger should start a pass")
	}
	<-src.entered
	if s.Trigger(ctx) {
		t.Fatalf("second Trigger should not start while one is in flight")
	}
	// Canceling the caller's context does not abort the pass.
	cancel()
	close(src.block)
	s.Wait()

	if cp := checkpoint(t, db); cp.Status != domain.SyncStatusSuccess {
		t.Fatalf("status = %s", cp.Status)
	}
}
