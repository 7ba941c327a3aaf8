package dbh

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONField is a database column that is stored as JSON text, but exposed
// as a typed value. A nil pointer stores NULL.
type JSONField[T any] struct {
	Data T
}

// MakeJSONField returns a new JSONField wrapping 'data'.
func MakeJSONField[T any](data T) *JSONField[T] {
	return &JSONField[T]{Data: data}
}

func (j *JSONField[T]) Scan(src any) error {
	if src == nil {
		var empty T
		j.Data = empty
		return nil
	}
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), &j.Data)
	case []byte:
		return json.Unmarshal(v, &j.Data)
	}
	return fmt.Errorf("Unable to scan JSONField from type %T", src)
}

func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j JSONField[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

func (j *JSONField[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.Data)
}
