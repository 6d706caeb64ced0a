package domain

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Bool is a boolean that tolerates the loose representations found in
// persisted metadata rows: 0/1 integers, "0"/"1"/"true"/"false" strings
// and native booleans all load as the same value. It always marshals
// back out as a strict JSON boolean.
type Bool bool

// Scan implements sql.Scanner
func (b *Bool) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*b = false
	case bool:
		*b = Bool(v)
	case int64:
		*b = Bool(v != 0)
	case []byte:
		return b.parse(string(v))
	case string:
		return b.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into Bool", value)
	}
	return nil
}

// Value implements driver.Valuer
func (b Bool) Value() (driver.Value, error) {
	return bool(b), nil
}

// UnmarshalJSON accepts true/false, 0/1 and their string forms
func (b *Bool) UnmarshalJSON(data []byte) error {
	return b.parse(string(bytes.Trim(data, `"`)))
}

// MarshalJSON always emits a strict boolean
func (b Bool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

func (b *Bool) parse(s string) error {
	switch s {
	case "", "null":
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value %q", s)
	}
	*b = Bool(v)
	return nil
}

// Bool returns the plain boolean value
func (b Bool) Bool() bool { return bool(b) }
