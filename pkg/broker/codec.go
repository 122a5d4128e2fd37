package broker

import (
	"encoding/json"
	"fmt"
)

// Identified is implemented by payloads that carry their own identifier.
// The identifier travels as a message header so consumers can deduplicate.
type Identified interface {
	MessageID() string
}

// Encode turns a payload into wire bytes. []byte and string pass through, anything else is JSON.
func Encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
}

// MessageID returns the payload identifier, or "" when it has none.
func MessageID(payload interface{}) string {
	if id, ok := payload.(Identified); ok {
		return id.MessageID()
	}
	return ""
}
