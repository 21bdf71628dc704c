package types

import (
	"bytes"
	"encoding/json"
)

// NullableString tracks whether a string field was present in JSON, and if so
// whether it was explicitly null. Omitted fields leave Valid false.
type NullableString struct {
	Valid bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed string
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// Set builds a present, non-null value.
func Set(value string) NullableString {
	return NullableString{Valid: true, Value: &value}
}

// Cleared builds a present, explicitly null value.
func Cleared() NullableString {
	return NullableString{Valid: true}
}
