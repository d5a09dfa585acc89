package models

import (
	"bytes"
	"encoding/json"
)

type optionalState uint8

const (
	absent optionalState = iota
	unset
	present
)

// Optional is a field of a partial update. The zero value is absent and
// leaves the stored field untouched; Unset clears it; Set replaces it.
//
// When decoded from JSON a missing key stays absent and null becomes unset.
type Optional[T any] struct {
	state optionalState
	value T
}

func Set[T any](value T) Optional[T] {
	return Optional[T]{state: present, value: value}
}

func Unset[T any]() Optional[T] {
	return Optional[T]{state: unset}
}

func (o Optional[T]) IsAbsent() bool { return o.state == absent }

func (o Optional[T]) IsUnset() bool { return o.state == unset }

// Get returns the value and whether one was set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == present
}

// Pointer returns nil when unset, for writing nullable columns.
func (o Optional[T]) Pointer() *T {
	if o.state != present {
		return nil
	}
	v := o.value
	return &v
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Unset[T]()
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Set(v)
	return nil
}
