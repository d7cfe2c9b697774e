package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

var errUnsupportedJSONBSource = errors.New("unsupported type for JSONB")

// JSONB wraps a value stored in a PostgreSQL JSONB column.
// It implements sql.Scanner and driver.Valuer so rows can carry structured
// job configuration and page facts without a column per field.
type JSONB[T any] struct {
	V T
}

// NewJSONB wraps v for storage.
func NewJSONB[T any](v T) JSONB[T] {
	return JSONB[T]{V: v}
}

// Scan implements the sql.Scanner interface.
func (j *JSONB[T]) Scan(value any) error {
	var zero T
	if value == nil {
		j.V = zero
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errUnsupportedJSONBSource
	}

	if len(data) == 0 {
		j.V = zero
		return nil
	}

	return json.Unmarshal(data, &j.V)
}

// Value implements the driver.Valuer interface.
func (j JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(j.V)
}
