package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// nullString maps "" to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return unixNano(*t)
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixNano(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// marshalJSON encodes v for a JSON TEXT column. Nil maps and slices are
// stored as their empty form so reads never see "null".
func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	if s := string(b); s != "null" {
		return s, nil
	}
	if reflect.ValueOf(v).Kind() == reflect.Slice {
		return "[]", nil
	}
	return "{}", nil
}

// marshalNullableJSON encodes v, storing NULL for a nil map.
func marshalNullableJSON(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return marshalJSON(v)
}

func unmarshalJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}

func unmarshalNullableJSON(s sql.NullString) (map[string]any, error) {
	if !s.Valid {
		return nil, nil
	}
	var m map[string]any
	if err := unmarshalJSON(s.String, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
