package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

const (
	// DefaultLimit is the page size used when a request leaves Limit at 0.
	DefaultLimit = 20
	// MaxLimit caps the page size; larger requests are clamped.
	MaxLimit = 100
)

// Filters narrows a search. All set filters must hold (AND). Within
// Tags, Products and ProductCategories every listed value must be present
// on the record. String comparisons ignore case. Dates are YYYY-MM-DD and
// ranges include both ends.
type Filters struct {
	Status             string   `json:"status,omitempty"`
	AvailabilityRing   string   `json:"availabilityRing,omitempty"`
	DateFrom           string   `json:"dateFrom,omitempty"`
	DateTo             string   `json:"dateTo,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Products           []string `json:"products,omitempty"`
	ProductCategories  []string `json:"productCategories,omitempty"`
	RetirementDateFrom string   `json:"retirementDateFrom,omitempty"`
	RetirementDateTo   string   `json:"retirementDateTo,omitempty"`
}

// Request is one search call. A blank Query means no text constraint.
// Sort is "<field>:<direction>", e.g. "retirementDate:asc"; empty means
// "modified:desc".
type Request struct {
	Query   string  `json:"query,omitempty"`
	Filters Filters `json:"filters"`
	Sort    string  `json:"sort,omitempty"`
	Limit   int     `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
}

// Response is one page of results.
type Response struct {
	Results []domain.RecordSummary `json:"results"`
	Total   int64                  `json:"total"`
	HasMore bool                   `json:"hasMore"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid search request: " + strings.Join(e.Problems, "; ")
}

// SortField is a sortable column.
type SortField string

const (
	SortModified       SortField = "modified"
	SortCreated        SortField = "created"
	SortRetirementDate SortField = "retirementDate"
	SortRelevance      SortField = "relevance"
)

// Sort is a parsed sort key.
type Sort struct {
	Field SortField
	Desc  bool
}

func (s Sort) String() string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return string(s.Field) + ":" + dir
}

// DefaultSort orders newest changes first.
var DefaultSort = Sort{Field: SortModified, Desc: true}

// ParseSort reads "<field>[:asc|desc]". Field names ignore case. Without a
// direction, retirementDate sorts ascending and the rest descending.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort, nil
	}
	name, dir, hasDir := strings.Cut(s, ":")

	var out Sort
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "modified":
		out = Sort{Field: SortModified, Desc: true}
	case "created":
		out = Sort{Field: SortCreated, Desc: true}
	case "retirementdate":
		out = Sort{Field: SortRetirementDate}
	case "relevance":
		out = Sort{Field: SortRelevance, Desc: true}
	default:
		return Sort{}, fmt.Errorf("unknown sort field %q", name)
	}
	if !hasDir {
		return out, nil
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "asc":
		out.Desc = false
	case "desc":
		out.Desc = true
	default:
		return Sort{}, fmt.Errorf("unknown sort direction %q", dir)
	}
	if out.Field == SortRelevance && !out.Desc {
		return Sort{}, fmt.Errorf("relevance sort only supports desc")
	}
	return out, nil
}

// plan is a validated, normalized request.
type plan struct {
	query   string
	hasText bool
	filters Filters
	sort    Sort
	limit   int
	offset  int

	modifiedFrom, modifiedBefore string
}

// Validate reports every problem with r, or nil.
func (r Request) Validate() error {
	_, err := r.plan()
	return err
}

func (r Request) plan() (*plan, error) {
	var problems []string
	p := &plan{
		query:  strings.TrimSpace(r.Query),
		limit:  r.Limit,
		offset: r.Offset,
	}
	p.hasText = p.query != ""

	f := r.Filters
	p.filters = Filters{
		Status:             strings.TrimSpace(f.Status),
		DateFrom:           strings.TrimSpace(f.DateFrom),
		DateTo:             strings.TrimSpace(f.DateTo),
		Tags:               cleanValues(f.Tags),
		Products:           cleanValues(f.Products),
		ProductCategories:  cleanValues(f.ProductCategories),
		RetirementDateFrom: strings.TrimSpace(f.RetirementDateFrom),
		RetirementDateTo:   strings.TrimSpace(f.RetirementDateTo),
	}

	if ring := strings.TrimSpace(f.AvailabilityRing); ring != "" {
		canon, ok := canonicalRing(ring)
		if !ok {
			problems = append(problems, fmt.Sprintf("availabilityRing %q is not one of %s", ring, strings.Join(domain.KnownRings(), ", ")))
		}
		p.filters.AvailabilityRing = canon
	}

	from, okFrom := checkDate("dateFrom", p.filters.DateFrom, &problems)
	to, okTo := checkDate("dateTo", p.filters.DateTo, &problems)
	if okFrom && okTo && !from.IsZero() && !to.IsZero() && from.After(to) {
		problems = append(problems, "dateFrom must not be after dateTo")
	}
	if okFrom && !from.IsZero() {
		p.modifiedFrom = domain.NewTimestamp(from).String()
	}
	if okTo && !to.IsZero() {
		p.modifiedBefore = domain.NewTimestamp(to.AddDate(0, 0, 1)).String()
	}

	rfrom, okRFrom := checkDate("retirementDateFrom", p.filters.RetirementDateFrom, &problems)
	rto, okRTo := checkDate("retirementDateTo", p.filters.RetirementDateTo, &problems)
	if okRFrom && okRTo && !rfrom.IsZero() && !rto.IsZero() && rfrom.After(rto) {
		problems = append(problems, "retirementDateFrom must not be after retirementDateTo")
	}

	sort, err := ParseSort(r.Sort)
	if err != nil {
		problems = append(problems, "sort: "+err.Error())
	}
	if err == nil && sort.Field == SortRelevance && !p.hasText {
		problems = append(problems, "relevance sort requires a query")
	}
	p.sort = sort

	if r.Limit < 0 {
		problems = append(problems, "limit must not be negative")
	}
	if r.Offset < 0 {
		problems = append(problems, "offset must not be negative")
	}
	switch {
	case p.limit == 0:
		p.limit = DefaultLimit
	case p.limit > MaxLimit:
		p.limit = MaxLimit
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return p, nil
}

// checkDate parses a YYYY-MM-DD value. Blank values are valid and zero.
func checkDate(name, v string, problems *[]string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s %q is not a YYYY-MM-DD date", name, v))
		return time.Time{}, false
	}
	return t, true
}

func canonicalRing(v string) (string, bool) {
	for _, r := range domain.KnownRings() {
		if strings.EqualFold(r, v) {
			return r, true
		}
	}
	return v, false
}

// cleanValues trims, drops blanks and case-insensitive duplicates.
func cleanValues(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
