// Package domain defines the replica's persistence models and the
// projections returned to callers. Row types are mapped with GORM; the
// schema itself is owned by the goose migrations in internal/repo.
package domain

// Availability rings known to the remote catalog. The store does not
// validate rings on write; the list is used to validate filter input.
const (
	RingPreview             = "Preview"
	RingTargetedRelease     = "Targeted Release"
	RingGeneralAvailability = "General Availability"
	RingRetirement          = "Retirement"
)

// KnownRings returns the availability ring vocabulary in display order.
func KnownRings() []string {
	return []string{RingPreview, RingTargetedRelease, RingGeneralAvailability, RingRetirement}
}

// Record is one change announcement replicated from the remote catalog.
//
// Fields:
//   - ID: stable remote identifier, the UPSERT key.
//   - Title: required headline.
//   - Description: raw markup exactly as received.
//   - DescriptionMarkdown: normalized markup derived at ingest.
//   - Status / Locale: optional, empty when absent.
//   - CreatedAt / ModifiedAt: remote timestamps (ModifiedAt >= CreatedAt).
//   - Tags / Categories / Products / Availabilities: multi-valued
//     attributes persisted in their own tables; never nil after loading.
type Record struct {
	ID                  string    `json:"id"                  gorm:"column:id;primaryKey"`
	Title               string    `json:"title"               gorm:"column:title;not null"`
	Description         string    `json:"description"         gorm:"column:description"`
	DescriptionMarkdown string    `json:"descriptionMarkdown" gorm:"column:description_markdown"`
	Status              string    `json:"status,omitempty"    gorm:"column:status"`
	Locale              string    `json:"locale,omitempty"    gorm:"column:locale"`
	CreatedAt           Timestamp `json:"createdAt"           gorm:"column:created_at;autoCreateTime:false"`
	ModifiedAt          Timestamp `json:"modifiedAt"          gorm:"column:modified_at"`

	Tags           []string       `json:"tags"           gorm:"-"`
	Categories     []string       `json:"categories"     gorm:"-"`
	Products       []string       `json:"products"       gorm:"-"`
	Availabilities []Availability `json:"availabilities" gorm:"-"`
}

// TableName returns the database table name for Record.
func (Record) TableName() string { return "records" }

// RetirementDate returns the earliest dated Retirement entry, if any.
func (r Record) RetirementDate() *string {
	return retirementDate(r.Availabilities)
}

// Summary projects r without its description text.
func (r Record) Summary() RecordSummary {
	return RecordSummary{
		ID:             r.ID,
		Title:          r.Title,
		Status:         r.Status,
		Locale:         r.Locale,
		CreatedAt:      r.CreatedAt,
		ModifiedAt:     r.ModifiedAt,
		RetirementDate: r.RetirementDate(),
		Tags:           r.Tags,
		Categories:     r.Categories,
		Products:       r.Products,
		Availabilities: r.Availabilities,
	}
}

// Availability is one release-ring milestone of a record. Date is a
// calendar date (YYYY-MM-DD) or nil when the catalog gives none.
type Availability struct {
	Ring string  `json:"ring"`
	Date *string `json:"date,omitempty"`
}

// RecordSummary is the search projection of a Record. It never carries
// description text. RelevanceScore is set only for free-text searches and
// grows with relevance.
type RecordSummary struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Status         string         `json:"status,omitempty"`
	Locale         string         `json:"locale,omitempty"`
	CreatedAt      Timestamp      `json:"createdAt"`
	ModifiedAt     Timestamp      `json:"modifiedAt"`
	RetirementDate *string        `json:"retirementDate,omitempty"`
	Tags           []string       `json:"tags"`
	Categories     []string       `json:"categories"`
	Products       []string       `json:"products"`
	Availabilities []Availability `json:"availabilities"`
	RelevanceScore *float64       `json:"relevanceScore,omitempty"`
}

// RecordTag links a record to one tag.
type RecordTag struct {
	RecordID string `gorm:"column:record_id;primaryKey"`
	Tag      string `gorm:"column:tag;primaryKey"`
}

// TableName returns the database table name for RecordTag.
func (RecordTag) TableName() string { return "record_tags" }

// RecordCategory links a record to one product category.
type RecordCategory struct {
	RecordID string `gorm:"column:record_id;primaryKey"`
	Category string `gorm:"column:category;primaryKey"`
}

// TableName returns the database table name for RecordCategory.
func (RecordCategory) TableName() string { return "record_categories" }

// RecordProduct links a record to one product.
type RecordProduct struct {
	RecordID string `gorm:"column:record_id;primaryKey"`
	Product  string `gorm:"column:product;primaryKey"`
}

// TableName returns the database table name for RecordProduct.
func (RecordProduct) TableName() string { return "record_products" }

// RecordAvailability stores one Availability; Position keeps the remote order.
type RecordAvailability struct {
	RecordID string  `gorm:"column:record_id;primaryKey"`
	Position int     `gorm:"column:position;primaryKey"`
	Ring     string  `gorm:"column:ring;not null"`
	Date     *string `gorm:"column:date"`
}

// TableName returns the database table name for RecordAvailability.
func (RecordAvailability) TableName() string { return "record_availabilities" }

func retirementDate(av []Availability) *string {
	var out *string
	for _, a := range av {
		if a.Ring != RingRetirement || a.Date == nil {
			continue
		}
		if out == nil || *a.Date < *out {
			d := *a.Date
			out = &d
		}
	}
	return out
}
