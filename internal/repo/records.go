// Package repo implements the data persistence layer for the replica,
// backed by GORM. This file provides the record functions: the UPSERT used
// by the replication engine, single-record reads, batched attribute loading
// for search pages, and the distinct-value queries behind the vocabulary.
//
// All functions are context-aware and accept a *gorm.DB handle, so the sync
// writer can run them inside its transaction and readers on the pool.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
//
// The full-text index is maintained by triggers on the records table, so
// writing a record row is enough to refresh its index entry.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// recordColumns are overwritten when an existing id is written again.
var recordColumns = []string{
	"title", "description", "description_markdown",
	"status", "locale", "created_at", "modified_at",
}

// Attributes holds the multi-valued sets of one record. Slices are never nil.
type Attributes struct {
	Tags           []string
	Categories     []string
	Products       []string
	Availabilities []domain.Availability
}

func newAttributes() *Attributes {
	return &Attributes{
		Tags:           []string{},
		Categories:     []string{},
		Products:       []string{},
		Availabilities: []domain.Availability{},
	}
}

// UpsertRecord inserts r or overwrites the existing row with the same id,
// then replaces its tags, categories, products and availabilities.
// The row keeps its internal rowid across updates, so the index entry is
// rewritten in place.
func UpsertRecord(ctx context.Context, db *gorm.DB, r *domain.Record) error {
	tx := db.WithContext(ctx)

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(recordColumns),
	}).Create(r).Error; err != nil {
		return err
	}

	for _, model := range []any{&domain.RecordTag{}, &domain.RecordCategory{}, &domain.RecordProduct{}, &domain.RecordAvailability{}} {
		if err := tx.Where("record_id = ?", r.ID).Delete(model).Error; err != nil {
			return err
		}
	}

	if tags := dedupe(r.Tags); len(tags) > 0 {
		rows := make([]domain.RecordTag, 0, len(tags))
		for _, v := range tags {
			rows = append(rows, domain.RecordTag{RecordID: r.ID, Tag: v})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if cats := dedupe(r.Categories); len(cats) > 0 {
		rows := make([]domain.RecordCategory, 0, len(cats))
		for _, v := range cats {
			rows = append(rows, domain.RecordCategory{RecordID: r.ID, Category: v})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if prods := dedupe(r.Products); len(prods) > 0 {
		rows := make([]domain.RecordProduct, 0, len(prods))
		for _, v := range prods {
			rows = append(rows, domain.RecordProduct{RecordID: r.ID, Product: v})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(r.Availabilities) > 0 {
		rows := make([]domain.RecordAvailability, 0, len(r.Availabilities))
		for i, a := range r.Availabilities {
			rows = append(rows, domain.RecordAvailability{RecordID: r.ID, Position: i, Ring: a.Ring, Date: a.Date})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetRecord fetches a full record (descriptions included) with its
// attributes, or ErrNotFound if missing.
func GetRecord(ctx context.Context, db *gorm.DB, id string) (*domain.Record, error) {
	var r domain.Record
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	attrs, err := LoadAttributes(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	a := attrs[id]
	r.Tags, r.Categories, r.Products, r.Availabilities = a.Tags, a.Categories, a.Products, a.Availabilities
	return &r, nil
}

// LoadAttributes returns the attribute sets for ids using one query per
// attribute kind. Every requested id has an entry, possibly empty.
func LoadAttributes(ctx context.Context, db *gorm.DB, ids []string) (map[string]*Attributes, error) {
	out := make(map[string]*Attributes, len(ids))
	for _, id := range ids {
		out[id] = newAttributes()
	}
	if len(ids) == 0 {
		return out, nil
	}
	q := db.WithContext(ctx)

	var tags []domain.RecordTag
	if err := q.Where("record_id IN ?", ids).Order("record_id, tag").Find(&tags).Error; err != nil {
		return nil, err
	}
	for _, t := range tags {
		if a, ok := out[t.RecordID]; ok {
			a.Tags = append(a.Tags, t.Tag)
		}
	}

	var cats []domain.RecordCategory
	if err := q.Where("record_id IN ?", ids).Order("record_id, category").Find(&cats).Error; err != nil {
		return nil, err
	}
	for _, c := range cats {
		if a, ok := out[c.RecordID]; ok {
			a.Categories = append(a.Categories, c.Category)
		}
	}

	var prods []domain.RecordProduct
	if err := q.Where("record_id IN ?", ids).Order("record_id, product").Find(&prods).Error; err != nil {
		return nil, err
	}
	for _, p := range prods {
		if a, ok := out[p.RecordID]; ok {
			a.Products = append(a.Products, p.Product)
		}
	}

	var avs []domain.RecordAvailability
	if err := q.Where("record_id IN ?", ids).Order("record_id, position").Find(&avs).Error; err != nil {
		return nil, err
	}
	for _, av := range avs {
		if a, ok := out[av.RecordID]; ok {
			a.Availabilities = append(a.Availabilities, domain.Availability{Ring: av.Ring, Date: av.Date})
		}
	}
	return out, nil
}

// CountRecords returns the number of replicated records.
func CountRecords(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Record{}).Count(&n).Error
	return n, err
}

// DistinctTags returns every tag value present in the replica.
func DistinctTags(ctx context.Context, db *gorm.DB) ([]string, error) {
	return distinct(ctx, db, &domain.RecordTag{}, "tag")
}

// DistinctCategories returns every product category present in the replica.
func DistinctCategories(ctx context.Context, db *gorm.DB) ([]string, error) {
	return distinct(ctx, db, &domain.RecordCategory{}, "category")
}

// DistinctProducts returns every product present in the replica.
func DistinctProducts(ctx context.Context, db *gorm.DB) ([]string, error) {
	return distinct(ctx, db, &domain.RecordProduct{}, "product")
}

// DistinctStatuses returns every non-empty status present in the replica.
func DistinctStatuses(ctx context.Context, db *gorm.DB) ([]string, error) {
	return distinct(ctx, db, &domain.Record{}, "status")
}

// DistinctRings returns every availability ring present in the replica.
func DistinctRings(ctx context.Context, db *gorm.DB) ([]string, error) {
	return distinct(ctx, db, &domain.RecordAvailability{}, "ring")
}

// RebuildSearchIndex regenerates the full-text index from the records table.
func RebuildSearchIndex(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Exec("INSERT INTO records_fts (records_fts) VALUES ('rebuild')").Error
}

func distinct(ctx context.Context, db *gorm.DB, model any, column string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(model).
		Where(column + " <> ''").
		Distinct().
		Order(column).
		Pluck(column, &out).Error
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// dedupe drops blanks and exact duplicates, keeping first occurrence order.
// The primary key is case-sensitive, so case variants are kept.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
