package sqlite

import (
	"encoding/json"
	"fmt"
)

func encodeObject(obj map[string]any) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("failed to encode json: %w", err)
	}
	return string(data), nil
}

func decodeObject(raw string) (map[string]any, error) {
	obj := map[string]any{}
	if raw == "" {
		return obj, nil
	}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}
