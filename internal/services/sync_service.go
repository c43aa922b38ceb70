// Package services – SyncService
//
// SyncService runs replication passes: it takes the checkpoint lock, pulls
// every record modified at or after the last sync timestamp, and writes the
// batch plus the advanced checkpoint in one transaction. A pass either
// commits completely or leaves the store and the checkpoint as they were.
//
// Passes can be run synchronously (CLI) or fired in the background by
// Trigger / TriggerIfStale (server boot, POST /sync). At most one pass runs
// at a time across processes sharing the database file; a pass that finds
// the lock held returns immediately with RunResult.Skipped set.
package services

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/observability"
	"github.com/tbourn/go-roadmap-replica/internal/remote"
	"github.com/tbourn/go-roadmap-replica/internal/repo"
)

// Source yields pages of remote records modified at or after since.
// *remote.Client implements it.
type Source interface {
	Pages(ctx context.Context, since domain.Timestamp, pageSize int) iter.Seq2[remote.Page, error]
}

// Converter turns a raw description into normalized markdown.
// *markup.Converter implements it.
type Converter interface {
	Convert(src string) (string, error)
}

// RunResult summarizes one call to Run.
type RunResult struct {
	// RunID is the sync_runs row of the pass; empty when Skipped.
	RunID string `json:"runId,omitempty"`
	// Skipped is true when another pass held the lock and nothing was done.
	Skipped bool `json:"skipped"`
	// Fetched counts records received from the source after mapping.
	Fetched int `json:"fetched"`
	// Written counts records upserted by the pass.
	Written int `json:"written"`
	// Dropped counts unmappable items plus records older than the
	// retention cutoff.
	Dropped int `json:"dropped"`
	// LastSyncTimestamp is the checkpoint after the pass.
	LastSyncTimestamp domain.Timestamp `json:"lastSyncTimestamp"`
	Duration          time.Duration    `json:"duration"`
}

// SyncService replicates the remote catalog into the local store.
type SyncService struct {
	// DB is the GORM handle of the local store.
	DB *gorm.DB
	// Source is the remote catalog.
	Source Source
	// Converter derives DescriptionMarkdown at ingest.
	Converter Converter
	// Log receives per-phase events.
	Log zerolog.Logger

	// PageSize is passed to Source; 0 lets the source choose.
	PageSize int
	// LockTTL is the age after which an in_progress pass is considered
	// abandoned and its lock may be taken over. Defaults to one hour.
	LockTTL time.Duration
	// RetentionCutoff drops records modified before it; zero keeps all.
	RetentionCutoff time.Time
	// KeepRuns bounds the run history; 0 keeps everything.
	KeepRuns int

	// Now overrides the clock in tests.
	Now func() time.Time

	wg      sync.WaitGroup
	running atomic.Bool
}

func (s *SyncService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SyncService) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return time.Hour
}

// Run executes one replication pass and blocks until it finishes. A lost
// lock race is not an error. Any failure after the lock was taken is
// recorded on the checkpoint and returned wrapped in ErrSyncFailed.
func (s *SyncService) Run(ctx context.Context) (RunResult, error) {
	ctx, span := otel.Tracer("services/SyncService").Start(ctx, "SyncService.Run")
	defer span.End()

	var res RunResult
	start := s.now()
	startedAt := domain.NewTimestamp(start)

	ok, err := repo.AcquireSyncLock(ctx, s.DB, startedAt, domain.NewTimestamp(start.Add(-s.lockTTL())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire lock")
		return res, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		res.Skipped = true
		span.SetAttributes(attribute.Bool("sync.skipped", true))
		s.Log.Info().Msg("sync: another pass is in progress, skipping")
		observability.ObserveSync("skipped", 0, 0, 0)
		return res, nil
	}

	// Bookkeeping below must land even if the caller goes away.
	bg := context.WithoutCancel(ctx)

	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		Status:    domain.SyncStatusInProgress,
	}
	res.RunID = run.ID
	log := s.Log.With().Str("run_id", run.ID).Logger()
	span.SetAttributes(attribute.String("sync.run_id", run.ID))

	passErr := s.runPass(ctx, bg, run, &res, start, log)

	res.Duration = s.now().Sub(start)
	finishedAt := domain.NewTimestamp(s.now())
	run.FinishedAt = finishedAt
	run.Fetched, run.Written, run.Skipped = res.Fetched, res.Written, res.Dropped

	status := "success"
	if passErr != nil {
		status = "failed"
		run.Status = domain.SyncStatusFailed
		run.Error = passErr.Error()
		if err := repo.MarkSyncFailed(bg, s.DB, passErr.Error(), res.Duration, finishedAt); err != nil {
			log.Error().Err(err).Msg("sync: could not record failure on checkpoint")
		}
		log.Error().Err(passErr).Dur("duration", res.Duration).Msg("sync: pass failed")
		span.RecordError(passErr)
		span.SetStatus(codes.Error, "pass failed")
	} else {
		run.Status = domain.SyncStatusSuccess
		log.Info().
			Int("fetched", res.Fetched).
			Int("written", res.Written).
			Int("dropped", res.Dropped).
			Str("last_sync_timestamp", res.LastSyncTimestamp.String()).
			Dur("duration", res.Duration).
			Msg("sync: pass committed")
	}

	if err := repo.FinishSyncRun(bg, s.DB, run); err != nil {
		log.Warn().Err(err).Msg("sync: could not finish run record")
	}
	if err := repo.PruneSyncRuns(bg, s.DB, s.KeepRuns); err != nil {
		log.Warn().Err(err).Msg("sync: could not prune run history")
	}
	observability.ObserveSync(status, res.Written, res.Dropped, res.Duration)
	span.SetAttributes(
		attribute.Int("sync.fetched", res.Fetched),
		attribute.Int("sync.written", res.Written),
	)

	if passErr != nil {
		return res, fmt.Errorf("%w: %w", ErrSyncFailed, passErr)
	}
	return res, nil
}

// runPass does the work between lock and bookkeeping. Panics are turned
// into errors so the checkpoint is always released.
func (s *SyncService) runPass(ctx, bg context.Context, run *domain.SyncRun, res *RunResult, start time.Time, log zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()

	if err := repo.CreateSyncRun(bg, s.DB, run); err != nil {
		return fmt.Errorf("create run record: %w", err)
	}

	cp, err := repo.GetCheckpoint(ctx, s.DB)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	since := cp.LastSyncTimestamp
	if since.IsZero() {
		since = domain.Epoch
	}
	run.Since = since
	log.Info().Str("since", since.String()).Msg("sync: fetching")

	batch, unmapped, err := s.fetch(ctx, since)
	if err != nil {
		return err
	}
	res.Fetched = len(batch)
	res.Dropped = unmapped

	// The checkpoint covers everything fetched, including records the
	// retention cutoff drops below.
	next := since
	for i := range batch {
		if batch[i].ModifiedAt.After(next) {
			next = batch[i].ModifiedAt
		}
	}

	keep := batch[:0]
	for _, r := range batch {
		if !s.RetentionCutoff.IsZero() && r.ModifiedAt.Before(s.RetentionCutoff) {
			res.Dropped++
			continue
		}
		keep = append(keep, r)
	}
	log.Debug().Int("records", len(keep)).Int("dropped", res.Dropped).Msg("sync: writing")

	err = s.DB.WithContext(bg).Transaction(func(tx *gorm.DB) error {
		for i := range keep {
			r := &keep[i]
			md, err := s.Converter.Convert(r.Description)
			if err != nil {
				return fmt.Errorf("convert description of %s: %w", r.ID, err)
			}
			r.DescriptionMarkdown = md
			if err := repo.UpsertRecord(bg, tx, r); err != nil {
				return fmt.Errorf("upsert %s: %w", r.ID, err)
			}
		}
		now := s.now()
		return repo.MarkSyncSucceeded(bg, tx, repo.SyncOutcome{
			LastSyncTimestamp: next,
			RecordCount:       len(keep),
			Duration:          now.Sub(start),
			FinishedAt:        domain.NewTimestamp(now),
		})
	})
	if err != nil {
		return err
	}
	res.Written = len(keep)
	res.LastSyncTimestamp = next
	return nil
}

// fetch drains the source. When the same id appears more than once (the
// feed shifted between pages) the newest version wins.
func (s *SyncService) fetch(ctx context.Context, since domain.Timestamp) ([]domain.Record, int, error) {
	var (
		out      []domain.Record
		unmapped int
		seen     = map[string]int{}
	)
	for page, err := range s.Source.Pages(ctx, since, s.PageSize) {
		if err != nil {
			return nil, 0, fmt.Errorf("fetch remote: %w", err)
		}
		unmapped += page.Skipped
		for _, r := range page.Records {
			if i, ok := seen[r.ID]; ok {
				if r.ModifiedAt.After(out[i].ModifiedAt) {
					out[i] = r
				}
				continue
			}
			seen[r.ID] = len(out)
			out = append(out, r)
		}
	}
	return out, unmapped, nil
}

// Trigger starts a background pass and reports whether one was started.
// It returns false when this process already has a pass in flight. The
// pass is detached from ctx cancellation; use Wait to block on it.
func (s *SyncService) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.Run(bg); err != nil {
			s.Log.Warn().Err(err).Msg("sync: background pass ended with error")
		}
	}()
	return true
}

// TriggerIfStale starts a background pass when the replica has never
// synced successfully or its last success is older than threshold.
func (s *SyncService) TriggerIfStale(ctx context.Context, threshold time.Duration) bool {
	cp, err := repo.GetCheckpoint(ctx, s.DB)
	if err != nil {
		s.Log.Error().Err(err).Msg("sync: read checkpoint for staleness check")
		return false
	}
	if !cp.LastSuccessAt.IsZero() && s.now().Sub(cp.LastSuccessAt.Time) <= threshold {
		s.Log.Debug().Str("last_success_at", cp.LastSuccessAt.String()).Msg("sync: replica is fresh")
		return false
	}
	return s.Trigger(ctx)
}

// Wait blocks until every background pass started by Trigger returns.
func (s *SyncService) Wait() { s.wg.Wait() }
