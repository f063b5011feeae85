package websocket

import (
	"encoding/json"

	"github.com/phyoewaiaung/devnexus-go/pkg/types"
)

// Socket.IO delivers payloads as loosely typed maps. The helpers below
// convert them into domain types, reporting ok=false on malformed input so
// the engine can drop the event instead of crashing.

// DecodeMessage decodes a message payload.
func DecodeMessage(data map[string]any) (types.Message, bool) {
	var msg types.Message
	if !decodeInto(data, &msg) {
		return types.Message{}, false
	}
	if msg.ID == "" && msg.ClientID == "" {
		return types.Message{}, false
	}
	return msg, true
}

// DecodeNotification decodes a notification payload.
func DecodeNotification(data map[string]any) (types.Notification, bool) {
	var n types.Notification
	if !decodeInto(data, &n) {
		return types.Notification{}, false
	}
	if n.ID == "" {
		return types.Notification{}, false
	}
	return n, true
}

func decodeInto(data map[string]any, dst any) bool {
	if data == nil {
		return false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// GetString extracts a string field from a payload map.
func GetString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

// GetBool extracts a boolean field from a payload map.
func GetBool(data map[string]any, key string) bool {
	if data == nil {
		return false
	}
	b, _ := data[key].(bool)
	return b
}

// GetInt extracts a numeric field from a payload map. JSON numbers arrive
// as float64 through the transport.
func GetInt(data map[string]any, key string) (int, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetStringSlice extracts a []string field from a payload map.
func GetStringSlice(data map[string]any, key string) ([]string, bool) {
	if data == nil {
		return nil, false
	}
	raw, ok := data[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// GetMap extracts a nested object field from a payload map.
func GetMap(data map[string]any, key string) map[string]any {
	if data == nil {
		return nil
	}
	m, _ := data[key].(map[string]any)
	return m
}
