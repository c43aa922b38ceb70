// Record HTTP handlers.
//
// This file exposes the read side of the replica:
//   - GET  /records          (search via query parameters)
//   - POST /records/search   (search via JSON body)
//   - GET  /records/{id}     (full record)
//   - GET  /vocabulary       (filter values present in the replica)
//
// Handlers are transport-thin: they translate parameters into a
// search.Request, delegate to the catalog service and map its errors.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/search"
	"github.com/tbourn/go-roadmap-replica/internal/services"
	"github.com/tbourn/go-roadmap-replica/internal/utils"
)

//
// Service contracts (context-aware)
//

// CatalogService is the read API consumed by the handlers.
// *services.CatalogService implements it.
type CatalogService interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	Vocabulary(ctx context.Context) (*domain.Vocabulary, error)
	SyncStatus(ctx context.Context) (*domain.SyncCheckpoint, error)
	SyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

// SyncTrigger starts background replication passes.
// *services.SyncService implements it.
type SyncTrigger interface {
	Trigger(ctx context.Context) bool
}

// Handlers groups the API endpoints.
type Handlers struct {
	catalog CatalogService
	syncer  SyncTrigger
}

// New constructs Handlers. syncer may be nil, in which case POST /sync
// always reports that no pass was started.
func New(catalog CatalogService, syncer SyncTrigger) *Handlers {
	return &Handlers{catalog: catalog, syncer: syncer}
}

//
// Helpers
//

// requestFromQuery maps GET /records parameters onto a search.Request.
// Multi-valued filters accept repeated keys and comma-separated lists.
// Malformed integers are reported alongside the engine's own checks.
func requestFromQuery(c *gin.Context) (search.Request, []string) {
	var problems []string
	limit, okLimit := utils.ParseOptionalInt(c.Query("limit"))
	if !okLimit {
		problems = append(problems, "limit must be an integer")
	}
	offset, okOffset := utils.ParseOptionalInt(c.Query("offset"))
	if !okOffset {
		problems = append(problems, "offset must be an integer")
	}

	req := search.Request{
		Query: c.Query("q"),
		Filters: search.Filters{
			Status:             c.Query("status"),
			AvailabilityRing:   c.Query("ring"),
			DateFrom:           c.Query("date_from"),
			DateTo:             c.Query("date_to"),
			Tags:               utils.SplitMulti(c.QueryArray("tags")),
			Products:           utils.SplitMulti(c.QueryArray("products")),
			ProductCategories:  utils.SplitMulti(c.QueryArray("categories")),
			RetirementDateFrom: c.Query("retirement_from"),
			RetirementDateTo:   c.Query("retirement_to"),
		},
		Sort:   c.Query("sort"),
		Limit:  limit,
		Offset: offset,
	}
	return req, problems
}

// runSearch executes req and writes the outcome.
func (h *Handlers) runSearch(c *gin.Context, req search.Request, extra []string, etag string) {
	if len(extra) > 0 {
		// Collect the engine's problems too so the client sees all of them.
		var ve *search.ValidationError
		if err := req.Validate(); errors.As(err, &ve) {
			extra = append(extra, ve.Problems...)
		}
		failValidation(c, extra)
		return
	}

	res, err := h.catalog.Search(c.Request.Context(), req)
	if err != nil {
		var ve *search.ValidationError
		if errors.As(err, &ve) {
			failValidation(c, ve.Problems)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "search failed")
		return
	}
	okTagged(c, etag, res)
}

// checkFresh computes the request's ETag and answers 304 when the client's
// tag still matches. Checkpoint read failures yield no tag rather than
// failing the request.
func (h *Handlers) checkFresh(c *gin.Context, kind string) (etag string, done bool) {
	cp, err := h.catalog.SyncStatus(c.Request.Context())
	if err != nil {
		return "", false
	}
	etag = weakETag(kind, cp, c)
	return etag, notModified(c, etag)
}

//
// Handlers
//

// SearchRecords godoc
// @ID          searchRecords
// @Summary     Search records
// @Description Full-text search with filters, sorting and pagination. Multi-valued filters accept repeated keys or comma-separated lists and must all match.
// @Tags        Records
// @Produce     json
//
// @Param       q                query  string    false  "Free text; quoted phrases match exactly, other words match as prefixes"  example("microsoft teams" rooms)
// @Param       status           query  string    false  "Status (case-insensitive)"                example(Rolling out)
// @Param       ring             query  string    false  "Availability ring"                        Enums(Preview, Targeted Release, General Availability, Retirement)
// @Param       tags             query  []string  false  "Tags (all must match)"                    collectionFormat(multi)
// @Param       products         query  []string  false  "Products (all must match)"                collectionFormat(multi)
// @Param       categories       query  []string  false  "Product categories (all must match)"     collectionFormat(multi)
// @Param       date_from        query  string    false  "Modified on or after (YYYY-MM-DD)"        example(2025-01-01)
// @Param       date_to          query  string    false  "Modified on or before (YYYY-MM-DD)"       example(2025-12-31)
// @Param       retirement_from  query  string    false  "Retirement date on or after (YYYY-MM-DD)"
// @Param       retirement_to    query  string    false  "Retirement date on or before (YYYY-MM-DD)"
// @Param       sort             query  string    false  "field:direction"                          Enums(modified:desc, modified:asc, created:desc, created:asc, retirementDate:asc, retirementDate:desc, relevance:desc)
// @Param       limit            query  int       false  "Page size"                                minimum(1) maximum(100) default(20)
// @Param       offset           query  int       false  "Results to skip"                          minimum(0) default(0)
//
// @Success     200  {object}  search.Response
// @Header      200  {string}  ETag  "Weak ETag for current replica state"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /records [get]
func (h *Handlers) SearchRecords(c *gin.Context) {
	etag, done := h.checkFresh(c, "records")
	if done {
		return
	}
	req, problems := requestFromQuery(c)
	h.runSearch(c, req, problems, etag)
}

// SearchRecordsBody godoc
// @ID          searchRecordsBody
// @Summary     Search records (JSON body)
// @Description Same as GET /records with the request carried as JSON.
// @Tags        Records
// @Accept      json
// @Produce     json
//
// @Param       body  body  search.Request  true  "Search request"
//
// @Success     200  {object}  search.Response
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or validation failed"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /records/search [post]
func (h *Handlers) SearchRecordsBody(c *gin.Context) {
	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.runSearch(c, req, nil, "")
}

// GetRecord godoc
// @ID          getRecord
// @Summary     Get a record
// @Description Returns the full record including its raw and markdown descriptions.
// @Tags        Records
// @Produce     json
//
// @Param       id  path  string  true  "Record ID"  example(412718)
//
// @Success     200  {object}  domain.Record
// @Header      200  {string}  ETag  "Weak ETag for current replica state"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Record not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /records/{id} [get]
func (h *Handlers) GetRecord(c *gin.Context) {
	etag, done := h.checkFresh(c, "record")
	if done {
		return
	}
	rec, err := h.catalog.GetByID(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "record not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load record")
	default:
		okTagged(c, etag, rec)
	}
}

// GetVocabulary godoc
// @ID          getVocabulary
// @Summary     Filter vocabulary
// @Description Distinct tags, categories, products, statuses and rings present in the replica, plus the sync timestamp and record count. Advisory only.
// @Tags        Records
// @Produce     json
//
// @Success     200  {object}  domain.Vocabulary
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /vocabulary [get]
func (h *Handlers) GetVocabulary(c *gin.Context) {
	etag, done := h.checkFresh(c, "vocabulary")
	if done {
		return
	}
	v, err := h.catalog.Vocabulary(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load vocabulary")
		return
	}
	okTagged(c, etag, v)
}
