package amqp

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// RecordChangedMessage announces that a stored record was written or removed.
// Fields carries the full record for upserts so consumers need no store access.
type RecordChangedMessage struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Op         ChangeOp       `json:"op"`
	Fields     map[string]any `json:"fields,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewUpsertMessage(collection, id string, fields map[string]any) *RecordChangedMessage {
	return &RecordChangedMessage{
		Collection: collection,
		ID:         id,
		Op:         OpUpsert,
		Fields:     fields,
		Timestamp:  time.Now(),
	}
}

func NewDeleteMessage(collection, id string) *RecordChangedMessage {
	return &RecordChangedMessage{
		Collection: collection,
		ID:         id,
		Op:         OpDelete,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes a message, keeping numbers as json.Number.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var msg RecordChangedMessage
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" || msg.ID == "" {
		return nil, errors.New("message missing collection or id")
	}
	switch msg.Op {
	case OpUpsert, OpDelete:
	default:
		return nil, errors.New("unknown op " + string(msg.Op))
	}
	return &msg, nil
}
