package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the persisted form of every record and checkpoint
// timestamp: UTC with exactly seven fractional digits. Fixed width keeps
// lexical order equal to chronological order inside SQLite TEXT columns.
const TimestampLayout = "2006-01-02T15:04:05.0000000Z"

// DateLayout is the calendar-date form used for availability dates and
// date filters.
const DateLayout = "2006-01-02"

// timestampResolution matches the seven fractional digits of TimestampLayout.
const timestampResolution = 100 * time.Nanosecond

// Epoch is the checkpoint seed used before the first successful sync.
var Epoch = Timestamp{Time: time.Unix(0, 0).UTC()}

// Timestamp is a UTC instant stored with 100ns precision.
//
// The zero value maps to SQL NULL and to an empty string in text encodings.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC and truncates it to the stored precision.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC().Truncate(timestampResolution)}
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp { return NewTimestamp(time.Now()) }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

// ParseTimestamp accepts RFC 3339 values with or without a zone offset and
// with any fractional precision. Values without a zone are read as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// String formats t with TimestampLayout, or "" for the zero value.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// After reports whether t is strictly after u.
func (t Timestamp) After(u Timestamp) bool { return t.Time.After(u.Time) }

// Equal reports whether t and u denote the same instant.
func (t Timestamp) Equal(u Timestamp) bool { return t.Time.Equal(u.Time) }

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case string:
		ts, err := ParseTimestamp(v)
		if err != nil {
			return err
		}
		*t = ts
		return nil
	case []byte:
		ts, err := ParseTimestamp(string(v))
		if err != nil {
			return err
		}
		*t = ts
		return nil
	case time.Time:
		*t = NewTimestamp(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

// GormDataType keeps the column as TEXT.
func (Timestamp) GormDataType() string { return "text" }

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(b []byte) error {
	ts, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding so JSON carries the
// stored seven-digit form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts null, "" or any layout understood by ParseTimestamp.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*t = Timestamp{}
		return nil
	}
	return t.UnmarshalText([]byte(strings.Trim(s, `"`)))
}
