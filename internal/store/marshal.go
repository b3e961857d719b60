package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/revlog/revlog/internal/state"
)

// marshalState converts an audit state object to canonical JSON TEXT for
// storage. Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalState(obj state.Object) (string, error) {
	data, err := state.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

// unmarshalState parses canonical JSON TEXT back into a state object.
// Decoding goes through json.Number to avoid float64 precision loss for
// integer values > 2^53.
func unmarshalState(data string) (state.Object, error) {
	if data == "" || data == "{}" {
		return state.Object{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	v, err := state.ToValue(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	obj, ok := v.(state.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal state: not an object")
	}
	return obj, nil
}
