// Package services – CatalogService
//
// CatalogService is the read side of the replica. It fronts the search
// engine and the store for the adapters, mapping storage failures to the
// package's error values and keeping raw errors in the log.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/observability"
	"github.com/tbourn/go-roadmap-replica/internal/repo"
	"github.com/tbourn/go-roadmap-replica/internal/search"
)

// Searcher runs validated catalog searches. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// MaxRunsPage caps SyncRuns.
const MaxRunsPage = 100

// CatalogService answers queries against the local replica.
type CatalogService struct {
	DB     *gorm.DB
	Engine Searcher
	Log    zerolog.Logger
}

// Search runs req. A *search.ValidationError is returned unchanged; any
// other failure is logged and reported as ErrInternal.
func (s *CatalogService) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	hasText := strings.TrimSpace(req.Query) != ""
	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Bool("search.text", hasText),
			attribute.String("search.sort", req.Sort),
			attribute.Int("search.limit", req.Limit),
			attribute.Int("search.offset", req.Offset),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := s.Engine.Search(ctx, req)
	if err != nil {
		var ve *search.ValidationError
		if errors.As(err, &ve) {
			observability.ObserveSearch(hasText, time.Since(start), "validation")
			return nil, err
		}
		observability.ObserveSearch(hasText, time.Since(start), "internal")
		span.RecordError(err)
		s.Log.Error().Err(err).Str("query", req.Query).Msg("search failed")
		return nil, ErrInternal
	}
	observability.ObserveSearch(hasText, time.Since(start), "")
	span.SetAttributes(attribute.Int64("search.total", res.Total))
	return res, nil
}

// GetByID returns the full record, descriptions included.
func (s *CatalogService) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "GetByID",
		trace.WithAttributes(attribute.String("record.id", id)),
	)
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRecordNotFound
	}
	r, err := repo.GetRecord(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		span.RecordError(err)
		s.Log.Error().Err(err).Str("record_id", id).Msg("get record failed")
		return nil, ErrInternal
	}
	return r, nil
}

// Vocabulary lists the distinct filter values present in the replica,
// each sorted case-insensitively in English collation order.
func (s *CatalogService) Vocabulary(ctx context.Context) (*domain.Vocabulary, error) {
	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "Vocabulary")
	defer span.End()

	var (
		v  domain.Vocabulary
		cp *domain.SyncCheckpoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { v.Tags, err = repo.DistinctTags(gctx, s.DB); return })
	g.Go(func() (err error) { v.Categories, err = repo.DistinctCategories(gctx, s.DB); return })
	g.Go(func() (err error) { v.Products, err = repo.DistinctProducts(gctx, s.DB); return })
	g.Go(func() (err error) { v.Statuses, err = repo.DistinctStatuses(gctx, s.DB); return })
	g.Go(func() (err error) { v.AvailabilityRings, err = repo.DistinctRings(gctx, s.DB); return })
	g.Go(func() (err error) { v.RecordCount, err = repo.CountRecords(gctx, s.DB); return })
	g.Go(func() (err error) { cp, err = repo.GetCheckpoint(gctx, s.DB); return })
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.Log.Error().Err(err).Msg("load vocabulary failed")
		return nil, ErrInternal
	}
	v.LastSyncTimestamp = cp.LastSyncTimestamp

	// A Collator is not safe for concurrent use.
	c := collate.New(language.English, collate.IgnoreCase)
	for _, vals := range [][]string{v.Tags, v.Categories, v.Products, v.Statuses, v.AvailabilityRings} {
		c.SortStrings(vals)
	}
	return &v, nil
}

// SyncStatus returns the replication checkpoint.
func (s *CatalogService) SyncStatus(ctx context.Context) (*domain.SyncCheckpoint, error) {
	cp, err := repo.GetCheckpoint(ctx, s.DB)
	if err != nil {
		s.Log.Error().Err(err).Msg("read checkpoint failed")
		return nil, ErrInternal
	}
	return cp, nil
}

// SyncRuns returns the most recent passes, newest first. limit is clamped
// to [1, MaxRunsPage]; 0 uses the store default.
func (s *CatalogService) SyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit > MaxRunsPage {
		limit = MaxRunsPage
	}
	runs, err := repo.ListSyncRuns(ctx, s.DB, limit)
	if err != nil {
		s.Log.Error().Err(err).Msg("list sync runs failed")
		return nil, ErrInternal
	}
	if runs == nil {
		runs = []domain.SyncRun{}
	}
	return runs, nil
}
