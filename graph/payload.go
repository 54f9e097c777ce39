package graph

import (
	"encoding/json"
	"fmt"
)

// encodePayload renders a node payload as a JSON string for event records.
// Values that resist JSON encoding fall back to their fmt representation so
// an observer still sees something useful.
func encodePayload(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
