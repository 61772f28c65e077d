package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is an ISO-8601 instant as emitted by the item store. Zone-less
// values are read as UTC. Values that cannot be parsed keep their raw text
// and report a zero time.
type Timestamp struct {
	time.Time
	Raw string
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses s with the accepted layouts.
func ParseTimestamp(s string) Timestamp {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Raw: s}
		}
	}
	return Timestamp{Raw: s}
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*ts = ParseTimestamp(s)
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		if ts.Raw == "" {
			return []byte("null"), nil
		}
		return json.Marshal(ts.Raw)
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// String renders the timestamp for display.
func (ts Timestamp) String() string {
	if ts.IsZero() {
		return ts.Raw
	}
	return ts.UTC().Format("2006-01-02 15:04")
}

// Date renders the UTC calendar date.
func (ts Timestamp) Date() string {
	if ts.IsZero() {
		return ts.Raw
	}
	return ts.UTC().Format("2006-01-02")
}
