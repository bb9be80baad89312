package store

import (
	"encoding/json"
	"fmt"
)

// LoadJSON decodes the value at key into a T.
//
// An absent key yields fallback and no error. A value that does not decode,
// or that validate rejects, yields fallback and an error wrapping ErrCorrupt.
// validate may be nil.
func LoadJSON[T any](kv KV, key string, fallback T, validate func(T) error) (T, error) {
	raw, ok, err := kv.Get(key)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return fallback, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
		}
	}
	return v, nil
}

func SaveJSON[T any](kv KV, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(key, string(data))
}

// GetString returns the value at key, or fallback when absent or empty.
func GetString(kv KV, key, fallback string) string {
	v, ok, err := kv.Get(key)
	if err != nil || !ok || v == "" {
		return fallback
	}
	return v
}
