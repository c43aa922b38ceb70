package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp_Layouts(t *testing.T) {
	cases := map[string]string{
		"2025-01-15T10:20:30.1234567Z":      "2025-01-15T10:20:30.1234567Z",
		"2025-01-15T10:20:30Z":              "2025-01-15T10:20:30.0000000Z",
		"2025-01-15T10:20:30.1234567":       "2025-01-15T10:20:30.1234567Z",
		"2025-01-15T12:20:30.5+02:00":       "2025-01-15T10:20:30.5000000Z",
		"2025-01-15T10:20:30.123456789Z":    "2025-01-15T10:20:30.1234567Z",
		"2025-01-15 10:20:30.25":            "2025-01-15T10:20:30.2500000Z",
		"2025-01-15":                        "2025-01-15T00:00:00.0000000Z",
		"  2025-01-15T10:20:30.0000001Z  ": "2025-01-15T10:20:30.0000001Z",
	}
	for in, want := range cases {
		ts, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if got := ts.String(); got != want {
			t.Errorf("ParseTimestamp(%q) = %q; want %q", in, got, want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}
	if ts, err := ParseTimestamp("   "); err != nil || !ts.IsZero() {
		t.Fatalf("blank input should yield zero timestamp, got %v err=%v", ts, err)
	}
}

func TestTimestamp_LexicalOrderMatchesTime(t *testing.T) {
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	a := NewTimestamp(base)
	b := NewTimestamp(base.Add(100 * time.Nanosecond))
	c := NewTimestamp(base.Add(time.Second))
	if !(a.String() < b.String() && b.String() < c.String()) {
		t.Fatalf("lexical order broken: %s %s %s", a, b, c)
	}
	if !b.After(a) || a.After(b) || !a.Equal(NewTimestamp(base)) {
		t.Fatalf("After/Equal semantics broken")
	}
}

func TestTimestamp_ValueAndScan(t *testing.T) {
	var zero Timestamp
	if v, err := zero.Value(); err != nil || v != nil {
		t.Fatalf("zero Value() = %v, %v; want nil", v, err)
	}

	ts := NewTimestamp(time.Date(2025, 3, 1, 8, 30, 0, 1234500, time.UTC))
	v, err := ts.Value()
	if err != nil || v != "2025-03-01T08:30:00.0012345Z" {
		t.Fatalf("Value() = %v, %v", v, err)
	}

	for _, src := range []any{"2025-03-01T08:30:00.0012345Z", []byte("2025-03-01T08:30:00.0012345Z"), ts.Time} {
		var got Timestamp
		if err := got.Scan(src); err != nil {
			t.Fatalf("Scan(%T): %v", src, err)
		}
		if !got.Equal(ts) {
			t.Fatalf("Scan(%T) = %v; want %v", src, got, ts)
		}
	}

	var n Timestamp = ts
	if err := n.Scan(nil); err != nil || !n.IsZero() {
		t.Fatalf("Scan(nil) should reset to zero, got %v err=%v", n, err)
	}
	if err := n.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}

func TestTimestamp_JSON(t *testing.T) {
	type wrap struct {
		At  Timestamp `json:"at"`
		Nil Timestamp `json:"nil"`
	}
	in := wrap{At: NewTimestamp(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"at":"2025-01-10T00:00:00.0000000Z","nil":null}` {
		t.Fatalf("unexpected JSON: %s", b)
	}

	var out wrap
	if err := json.Unmarshal([]byte(`{"at":"2025-01-10T00:00:00Z","nil":null}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.At.Equal(in.At) || !out.Nil.IsZero() {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestEpoch(t *testing.T) {
	if Epoch.String() != "1970-01-01T00:00:00.0000000Z" {
		t.Fatalf("Epoch = %s", Epoch)
	}
}
