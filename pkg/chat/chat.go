package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// MaxMessageLength caps the text of a single message.
const MaxMessageLength = 20000

var ErrMessageIndex = errors.New("message index out of range")

// Chat is a roleplay conversation. Message indexes are positions in Messages.
type Chat struct {
	ID         uuid.UUID   `json:"id"`
	UserName   string      `json:"user_name"`
	Persona    string      `json:"persona,omitempty"` // Description of the user's character
	Characters []Character `json:"characters,omitempty"`
	Messages   []Message   `json:"messages"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Character is a participant played by the model.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Message is one turn of the conversation. A message carries at most one
// tracker, replaced whole whenever it changes.
type Message struct {
	Name     string          `json:"name"`
	Text     string          `json:"text"`
	IsUser   bool            `json:"is_user,omitempty"`
	IsSystem bool            `json:"is_system,omitempty"`
	Tracker  *tracker.Object `json:"tracker,omitempty"`
	SentAt   time.Time       `json:"sent_at"`
}

// New returns an empty chat with a fresh id.
func New(userName string, characters ...Character) *Chat {
	now := time.Now()
	return &Chat{
		ID:         uuid.New(),
		UserName:   userName,
		Characters: characters,
		Messages:   []Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the chat before it is stored.
func (c *Chat) Validate() error {
	if c.ID == uuid.Nil {
		return errors.New("chat id is required")
	}
	for i, m := range c.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single message.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("message name cannot be empty")
	}
	if len(m.Text) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	}
	return nil
}

// Append adds a message and returns its index.
func (c *Chat) Append(m Message) int {
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = m.SentAt
	return len(c.Messages) - 1
}

// Message returns the message at index i.
func (c *Chat) Message(i int) (*Message, error) {
	if i < 0 || i >= len(c.Messages) {
		return nil, fmt.Errorf("%w: %d", ErrMessageIndex, i)
	}
	return &c.Messages[i], nil
}

// LastTracker returns the tracker of the last message at or before index at
// that has one, along with that message's index. It returns -1 when no
// earlier message carries a tracker.
func (c *Chat) LastTracker(at int) (*tracker.Object, int) {
	if at >= len(c.Messages) {
		at = len(c.Messages) - 1
	}
	for i := at; i >= 0; i-- {
		if t := c.Messages[i].Tracker; t != nil && t.Len() > 0 {
			return t, i
		}
	}
	return nil, -1
}

// PreviousNonSystem returns the index of the last non-system message before
// index at, or -1.
func (c *Chat) PreviousNonSystem(at int) int {
	if at > len(c.Messages) {
		at = len(c.Messages)
	}
	for i := at - 1; i >= 0; i-- {
		if !c.Messages[i].IsSystem {
			return i
		}
	}
	return -1
}

// LastNonSystem returns the index of the newest non-system message, or -1.
func (c *Chat) LastNonSystem() int {
	return c.PreviousNonSystem(len(c.Messages))
}

// Recent returns the indexes of up to n non-system messages ending at index
// at, oldest first.
func (c *Chat) Recent(at, n int) []int {
	if at >= len(c.Messages) {
		at = len(c.Messages) - 1
	}
	var out []int
	for i := at; i >= 0 && len(out) < n; i-- {
		if !c.Messages[i].IsSystem {
			out = append(out, i)
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Depth returns how many non-system messages follow index i.
func (c *Chat) Depth(i int) int {
	depth := 0
	for j := i + 1; j < len(c.Messages); j++ {
		if !c.Messages[j].IsSystem {
			depth++
		}
	}
	return depth
}
