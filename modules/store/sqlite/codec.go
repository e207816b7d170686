package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
)

// Timestamps are stored as RFC 3339 text in UTC so they sort lexically.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// encodeJSON returns nil for a nil or empty value so the column stays NULL.
func encodeJSON(v any) (any, error) {
	switch x := v.(type) {
	case json.RawMessage:
		if len(x) == 0 {
			return nil, nil
		}
		return string(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode json: %w", err)
	}
	if string(b) == "null" || string(b) == "[]" {
		return nil, nil
	}
	return string(b), nil
}

func decodeJSON(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), dst); err != nil {
		return fmt.Errorf("sqlite: decode json: %w", err)
	}
	return nil
}

func rawJSON(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// optArg maps an unset patch field to NULL, which COALESCE treats as
// "keep the stored value".
func optArg[T any](o approval.Opt[T]) any {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	switch x := any(v).(type) {
	case time.Time:
		return formatTime(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return v
}
