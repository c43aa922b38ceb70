package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapItem_FullItem(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 412345,
		"title": "  Microsoft Teams: new rooms layout ",
		"description": "<p>Hello</p>",
		"status": "Rolling out",
		"locale": null,
		"created": "2024-11-01T08:00:00.123Z",
		"modified": "2025-01-15T10:20:30.1234567",
		"tags": ["Web", " Web ", "", "Desktop"],
		"productCategories": ["Features"],
		"products": ["Microsoft Teams"],
		"availabilities": [
			{"ring": "General Availability", "year": 2025, "month": "February"},
			{"ring": "Retirement", "year": "2026", "month": 3},
			{"ring": "Preview", "year": null, "month": "May"},
			{"ring": "Targeted Release", "year": 2025, "month": "Sept"}
		]
	}`)

	r, ok := mapItem(raw)
	require.True(t, ok)
	assert.Equal(t, "412345", r.ID)
	assert.Equal(t, "Microsoft Teams: new rooms layout", r.Title)
	assert.Equal(t, "<p>Hello</p>", r.Description)
	assert.Equal(t, "", r.Locale)
	assert.Equal(t, "2024-11-01T08:00:00.1230000Z", r.CreatedAt.String())
	assert.Equal(t, "2025-01-15T10:20:30.1234567Z", r.ModifiedAt.String())
	assert.Equal(t, []string{"Web", "Desktop"}, r.Tags)
	assert.Equal(t, []string{"Features"}, r.Categories)

	require.Len(t, r.Availabilities, 4)
	assert.Equal(t, "2025-02-28", *r.Availabilities[0].Date)
	assert.Equal(t, "2026-03-31", *r.Availabilities[1].Date)
	assert.Nil(t, r.Availabilities[2].Date)
	assert.Equal(t, "2025-09-30", *r.Availabilities[3].Date)
	require.NotNil(t, r.RetirementDate())
	assert.Equal(t, "2026-03-31", *r.RetirementDate())
}

func TestMapItem_SetsAreNeverNil(t *testing.T) {
	r, ok := mapItem(json.RawMessage(`{"id":"a","title":"t","created":"2025-01-01T00:00:00Z"}`))
	require.True(t, ok)
	assert.NotNil(t, r.Tags)
	assert.NotNil(t, r.Categories)
	assert.NotNil(t, r.Products)
	assert.NotNil(t, r.Availabilities)
	assert.True(t, r.ModifiedAt.Equal(r.CreatedAt), "missing modified falls back to created")
}

func TestMapItem_ClampsModifiedBeforeCreated(t *testing.T) {
	r, ok := mapItem(json.RawMessage(`{"id":"a","title":"t","created":"2025-01-02T00:00:00Z","modified":"2025-01-01T00:00:00Z"}`))
	require.True(t, ok)
	assert.Equal(t, r.CreatedAt.String(), r.ModifiedAt.String())
}

func TestMapItem_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"no id":          `{"title":"t","created":"2025-01-01T00:00:00Z"}`,
		"blank title":    `{"id":1,"title":"  ","created":"2025-01-01T00:00:00Z"}`,
		"no timestamps":  `{"id":1,"title":"t"}`,
		"bad timestamp":  `{"id":1,"title":"t","created":"soon"}`,
		"not an object":  `"hello"`,
		"bad tags shape": `{"id":1,"title":"t","created":"2025-01-01T00:00:00Z","tags":[{"x":1}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := mapItem(json.RawMessage(raw))
			assert.False(t, ok)
		})
	}
}

func TestParseMonth(t *testing.T) {
	cases := map[string]int{"1": 1, "12": 12, "January": 1, "feb": 2, "Dec.": 12, "sept": 9}
	for in, want := range cases {
		m, ok := parseMonth(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, int(m), in)
	}
	for _, bad := range []string{"", "0", "13", "Smarch"} {
		_, ok := parseMonth(bad)
		assert.False(t, ok, bad)
	}
}

func TestMonthEnd_LeapYear(t *testing.T) {
	d := monthEnd(json.RawMessage(`2024`), json.RawMessage(`"February"`))
	require.NotNil(t, d)
	assert.Equal(t, "2024-02-29", *d)
}
