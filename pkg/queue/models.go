package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeGenerate regenerates the tracker of a message on demand
	RequestTypeGenerate RequestType = "generate"

	// RequestTypeAuto generates the tracker of a newly arrived message,
	// subject to the generation target settings
	RequestTypeAuto RequestType = "auto"
)

// Request is a unit of tracker work in the queue
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	ChatID    uuid.UUID   `json:"chat_id"`

	// MessageIndex is the message whose tracker is produced
	MessageIndex int `json:"message_index"`
	// Anchor is the last message the model reads. Negative means the message
	// before MessageIndex.
	Anchor int `json:"anchor"`
	// Include is the presence filter for the prompt ("dynamic", "static", "all")
	Include string `json:"include,omitempty"`

	Attempts   int       `json:"attempts,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest builds a request with a fresh id.
func NewRequest(typ RequestType, chatID uuid.UUID, index int) *Request {
	return &Request{
		RequestID:    uuid.New().String(),
		Type:         typ,
		ChatID:       chatID,
		MessageIndex: index,
		Anchor:       -1,
		EnqueuedAt:   time.Now(),
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
