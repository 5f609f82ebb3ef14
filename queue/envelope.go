package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedEnvelope is returned when a broker payload is not a JSON object.
var ErrMalformedEnvelope = errors.New("malformed message envelope")

// Envelope is the transport wrapper the services publish. Only Message is
// part of the contract consumers rely on; the remaining fields follow the
// MassTransit layout so existing consumers keep working.
type Envelope struct {
	MessageID   string          `json:"messageId"`
	MessageType []string        `json:"messageType,omitempty"`
	SentTime    time.Time       `json:"sentTime"`
	Message     json.RawMessage `json:"message"`
}

// Wrap serializes payload into an envelope tagged with messageType.
func Wrap(messageType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	env := Envelope{
		MessageID: uuid.NewString(),
		SentTime:  time.Now().UTC(),
		Message:   body,
	}
	if messageType != "" {
		env.MessageType = []string{"urn:message:" + messageType}
	}
	return json.Marshal(env)
}

// Unwrap extracts the raw text of the "message" property. ok is false when
// the property is missing or null. A string-valued property is unquoted, so
// {"message":"{\"id\":\"abc\"}"} and {"message":{"id":"abc"}} both yield
// {"id":"abc"}.
func Unwrap(body []byte) (payload string, ok bool, err error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	raw, found := root["message"]
	if !found {
		return "", false, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return s, true, nil
	}
	return string(raw), true, nil
}
