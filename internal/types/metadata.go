package types

import (
	"database/sql/driver"

	jsoniter "github.com/json-iterator/go"
	ierr "github.com/petalpost/petalpost/internal/errors"
)

// JSON is the shared codec for JSONB columns and event payloads
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata represents a JSONB field for storing key-value pairs
type Metadata map[string]string

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	result := make(Metadata)
	if err := scanJSONB(value, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return marshalJSONB(m)
}

// JSONB wraps any value stored as a JSONB column
type JSONB[T any] struct {
	Data T
}

func NewJSONB[T any](v T) JSONB[T] {
	return JSONB[T]{Data: v}
}

// Scan implements the sql.Scanner interface
func (j *JSONB[T]) Scan(value interface{}) error {
	return scanJSONB(value, &j.Data)
}

// Value implements the driver.Valuer interface
func (j JSONB[T]) Value() (driver.Value, error) {
	return marshalJSONB(j.Data)
}

// MarshalJSON renders the wrapped value directly
func (j JSONB[T]) MarshalJSON() ([]byte, error) {
	return JSON.Marshal(j.Data)
}

// UnmarshalJSON decodes into the wrapped value
func (j *JSONB[T]) UnmarshalJSON(b []byte) error {
	return JSON.Unmarshal(b, &j.Data)
}

// marshalJSONB returns text; lib/pq would send []byte as bytea
func marshalJSONB(v any) (driver.Value, error) {
	b, err := JSON.Marshal(v)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Value could not be encoded as JSON").
			Mark(ierr.ErrValidation)
	}
	return string(b), nil
}

func scanJSONB(value interface{}, dest any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ierr.NewErrorf("failed to unmarshal JSONB value: %v", value).
			Mark(ierr.ErrDatabase)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := JSON.Unmarshal(raw, dest); err != nil {
		return ierr.WithError(err).
			WithHint("Stored JSON could not be decoded").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
