package search

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/repo"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	titleWeight float64
	bodyWeight  float64
}

func defaultConfig() config {
	return config{titleWeight: 10, bodyWeight: 1}
}

// WithWeights sets the bm25 column weights for title and description.
// Non-positive values are ignored.
func WithWeights(title, body float64) Option {
	return func(c *config) {
		if title > 0 {
			c.titleWeight = title
		}
		if body > 0 {
			c.bodyWeight = body
		}
	}
}

// Engine runs searches against the local store. It only reads.
type Engine struct {
	db  *gorm.DB
	cfg config
}

// NewEngine returns an Engine over db.
func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{db: db, cfg: cfg}
}

const retirementDateExpr = `(SELECT MIN(a.date) FROM record_availabilities a
	WHERE a.record_id = r.id AND a.ring = '` + domain.RingRetirement + `' AND a.date IS NOT NULL)`

type resultRow struct {
	ID             string
	Title          string
	Status         string
	Locale         string
	CreatedAt      domain.Timestamp
	ModifiedAt     domain.Timestamp
	RetirementDate *string
	Relevance      *float64
}

// compiled holds the shared FROM/WHERE of the page and count queries.
type compiled struct {
	from    string
	joined  bool
	where   string
	args    []any
	orderBy string
}

// Search validates req and returns one page of summaries plus the total
// number of matches. Validation failures are returned as *ValidationError.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := otel.Tracer("search").Start(ctx, "Engine.Search")
	defer span.End()

	p, err := req.plan()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("search.has_text", p.hasText),
		attribute.String("search.sort", p.sort.String()),
		attribute.Int("search.limit", p.limit),
		attribute.Int("search.offset", p.offset),
	)

	q := e.compile(p)

	var (
		rows  []resultRow
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cols := "r.id, r.title, r.status, r.locale, r.created_at, r.modified_at, " +
			retirementDateExpr + " AS retirement_date"
		if q.joined {
			cols += ", -m.score AS relevance"
		}
		sql := "SELECT " + cols + " FROM " + q.from + q.where + " ORDER BY " + q.orderBy + " LIMIT ? OFFSET ?"
		args := append(append([]any{}, q.args...), p.limit, p.offset)
		if err := e.db.WithContext(gctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
			return fmt.Errorf("search page: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sql := "SELECT count(*) FROM " + q.from + q.where
		if err := e.db.WithContext(gctx).Raw(sql, q.args...).Scan(&total).Error; err != nil {
			return fmt.Errorf("search count: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	attrs, err := repo.LoadAttributes(ctx, e.db, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search attributes: %w", err)
	}

	results := make([]domain.RecordSummary, 0, len(rows))
	for _, r := range rows {
		a := attrs[r.ID]
		s := domain.RecordSummary{
			ID:             r.ID,
			Title:          r.Title,
			Status:         r.Status,
			Locale:         r.Locale,
			CreatedAt:      r.CreatedAt,
			ModifiedAt:     r.ModifiedAt,
			RetirementDate: r.RetirementDate,
			Tags:           a.Tags,
			Categories:     a.Categories,
			Products:       a.Products,
			Availabilities: a.Availabilities,
		}
		if p.hasText {
			s.RelevanceScore = r.Relevance
		}
		results = append(results, s)
	}

	span.SetAttributes(attribute.Int64("search.total", total))
	return &Response{
		Results: results,
		Total:   total,
		HasMore: total > int64(p.offset+len(results)),
		Limit:   p.limit,
		Offset:  p.offset,
	}, nil
}

func (e *Engine) compile(p *plan) compiled {
	var (
		conditions []string
		args       []any
	)
	from := "records r"
	joined := false

	if p.hasText {
		if expr := BuildMatchExpression(p.query); expr != "" {
			from = fmt.Sprintf(
				"records r JOIN (SELECT rowid AS doc_id, bm25(records_fts, %g, %g) AS score FROM records_fts WHERE records_fts MATCH ?) m ON m.doc_id = r.doc_id",
				e.cfg.titleWeight, e.cfg.bodyWeight,
			)
			args = append(args, expr)
			joined = true
		} else {
			conditions = append(conditions, "1 = 0")
		}
	}

	f := p.filters
	if f.Status != "" {
		conditions = append(conditions, "r.status = ? COLLATE NOCASE")
		args = append(args, f.Status)
	}
	if f.AvailabilityRing != "" {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM record_availabilities a WHERE a.record_id = r.id AND a.ring = ? COLLATE NOCASE)")
		args = append(args, f.AvailabilityRing)
	}
	if p.modifiedFrom != "" {
		conditions = append(conditions, "r.modified_at >= ?")
		args = append(args, p.modifiedFrom)
	}
	if p.modifiedBefore != "" {
		conditions = append(conditions, "r.modified_at < ?")
		args = append(args, p.modifiedBefore)
	}
	for _, v := range f.Tags {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM record_tags t WHERE t.record_id = r.id AND t.tag = ? COLLATE NOCASE)")
		args = append(args, v)
	}
	for _, v := range f.Products {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM record_products pr WHERE pr.record_id = r.id AND pr.product = ? COLLATE NOCASE)")
		args = append(args, v)
	}
	for _, v := range f.ProductCategories {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM record_categories c WHERE c.record_id = r.id AND c.category = ? COLLATE NOCASE)")
		args = append(args, v)
	}
	// The range applies to the same earliest Retirement date that is
	// returned and sorted on.
	if f.RetirementDateFrom != "" {
		conditions = append(conditions, retirementDateExpr+" >= ?")
		args = append(args, f.RetirementDateFrom)
	}
	if f.RetirementDateTo != "" {
		conditions = append(conditions, retirementDateExpr+" <= ?")
		args = append(args, f.RetirementDateTo)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	sort := p.sort
	if sort.Field == SortRelevance && !joined {
		// Nothing matches anyway; keep the statement valid without the rank join.
		sort = DefaultSort
	}
	return compiled{from: from, joined: joined, where: where, args: args, orderBy: orderBy(sort)}
}

// orderBy renders the ORDER BY list. Nulls go last in both directions and
// id breaks ties so pages are stable.
func orderBy(s Sort) string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	switch s.Field {
	case SortCreated:
		return "r.created_at " + dir + ", r.id ASC"
	case SortRetirementDate:
		return "retirement_date " + dir + " NULLS LAST, r.id ASC"
	case SortRelevance:
		return "m.score ASC, r.id ASC"
	default:
		return "r.modified_at " + dir + ", r.id ASC"
	}
}
