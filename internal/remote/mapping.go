package remote

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

type rawItem struct {
	ID                json.RawMessage   `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Status            string            `json:"status"`
	Locale            string            `json:"locale"`
	Created           string            `json:"created"`
	Modified          string            `json:"modified"`
	Tags              []string          `json:"tags"`
	ProductCategories []string          `json:"productCategories"`
	Products          []string          `json:"products"`
	Availabilities    []rawAvailability `json:"availabilities"`
}

type rawAvailability struct {
	Ring  string          `json:"ring"`
	Year  json.RawMessage `json:"year"`
	Month json.RawMessage `json:"month"`
}

// mapItem converts one raw catalog item. It reports false for items that
// cannot form a valid record.
func mapItem(raw json.RawMessage) (domain.Record, bool) {
	var it rawItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return domain.Record{}, false
	}

	id := scalarString(it.ID)
	title := strings.TrimSpace(it.Title)
	if id == "" || title == "" {
		return domain.Record{}, false
	}

	created, err := domain.ParseTimestamp(it.Created)
	if err != nil {
		return domain.Record{}, false
	}
	modified, err := domain.ParseTimestamp(it.Modified)
	if err != nil {
		return domain.Record{}, false
	}
	switch {
	case created.IsZero() && modified.IsZero():
		return domain.Record{}, false
	case modified.IsZero():
		modified = created
	case created.IsZero():
		created = modified
	}
	// The store requires modified >= created.
	if modified.Before(created.Time) {
		modified = created
	}

	return domain.Record{
		ID:             id,
		Title:          title,
		Description:    it.Description,
		Status:         strings.TrimSpace(it.Status),
		Locale:         strings.TrimSpace(it.Locale),
		CreatedAt:      created,
		ModifiedAt:     modified,
		Tags:           cleanSet(it.Tags),
		Categories:     cleanSet(it.ProductCategories),
		Products:       cleanSet(it.Products),
		Availabilities: mapAvailabilities(it.Availabilities),
	}, true
}

func mapAvailabilities(in []rawAvailability) []domain.Availability {
	out := make([]domain.Availability, 0, len(in))
	for _, a := range in {
		ring := strings.TrimSpace(a.Ring)
		if ring == "" {
			continue
		}
		out = append(out, domain.Availability{Ring: ring, Date: monthEnd(a.Year, a.Month)})
	}
	return out
}

// monthEnd returns the last calendar day of the given year and month, or
// nil when either is missing or unreadable.
func monthEnd(yearRaw, monthRaw json.RawMessage) *string {
	year, err := strconv.Atoi(scalarString(yearRaw))
	if err != nil || year <= 0 {
		return nil
	}
	month, ok := parseMonth(scalarString(monthRaw))
	if !ok {
		return nil
	}
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout)
	return &d
}

var monthNames = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthNames[name] = m
		monthNames[name[:3]] = m
	}
	monthNames["sept"] = time.September
}

func parseMonth(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, false
		}
		return time.Month(n), true
	}
	m, ok := monthNames[strings.TrimSuffix(s, ".")]
	return m, ok
}

// scalarString reads a JSON string or number as text. Other kinds and
// null yield "".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

// cleanSet trims values and drops blanks and duplicates, keeping order.
func cleanSet(in []string) []string {
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
