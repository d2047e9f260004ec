package chat

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage is one message of a model call.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// AppendRequest adds a message to a chat through the API.
type AppendRequest struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	IsUser   bool   `json:"is_user,omitempty"`
	IsSystem bool   `json:"is_system,omitempty"`
	// Generate queues automatic tracker generation for the new message when
	// the generation target allows it.
	Generate bool `json:"generate,omitempty"`
}

func (r *AppendRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("message cannot be empty")
	}
	if len(r.Text) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	return nil
}

// Message converts the request into a chat message.
func (r *AppendRequest) Message() Message {
	return Message{
		Name:     strings.TrimSpace(r.Name),
		Text:     r.Text,
		IsUser:   r.IsUser,
		IsSystem: r.IsSystem,
	}
}
