package amqp

import (
	"encoding/json"
	"time"

	"smartledger/internal/categories"
)

// ChangeMessage is the wire form of a category change event. It carries only
// the event name, the storage key and the writer's origin id; receivers
// re-read the value from the backend themselves.
type ChangeMessage struct {
	Event     string    `json:"event"`
	Key       string    `json:"key"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage wraps a change with a publish timestamp.
func NewChangeMessage(change categories.Change) *ChangeMessage {
	return &ChangeMessage{
		Event:     change.Event,
		Key:       change.Key,
		Origin:    change.Origin,
		Timestamp: time.Now(),
	}
}

// Change converts the wire message back to the domain event.
func (m *ChangeMessage) Change() categories.Change {
	return categories.Change{
		Event:  m.Event,
		Key:    m.Key,
		Origin: m.Origin,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
