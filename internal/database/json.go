package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON wraps any serializable value as a TEXT column. Nested collections
// (artists, albums, metadata, provider_mappings) are stored this way.
type JSON[T any] struct {
	Data T
}

// NewJSON wraps a value for storage.
func NewJSON[T any](data T) JSON[T] {
	return JSON[T]{Data: data}
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (j *JSON[T]) Scan(src any) error {
	if src == nil {
		var zero T
		j.Data = zero
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported source type for json column: %T", src)
	}
	if len(raw) == 0 {
		var zero T
		j.Data = zero
		return nil
	}
	return json.Unmarshal(raw, &j.Data)
}

// MarshalJSON passes the wrapped value through.
func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

// UnmarshalJSON passes the wrapped value through.
func (j *JSON[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}
