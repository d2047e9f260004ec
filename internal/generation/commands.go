package generation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// Auto generates the tracker of a newly arrived message when the settings
// allow it. It returns ErrSkipped for system messages, messages before the
// first generated index, messages the generation target excludes and
// messages that already carry a tracker.
func (g *Generator) Auto(ctx context.Context, chatID uuid.UUID, index int, requestID string) (*Result, error) {
	c, err := g.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msg, err := c.Message(index)
	if err != nil {
		return nil, err
	}
	if index < g.settings.GenerateFromMessage || !chat.ShouldGenerate(*msg, g.settings.GenerationTarget) {
		return nil, ErrSkipped
	}
	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if tracker.Exists(msg.Tracker, schema) {
		return nil, ErrSkipped
	}

	return g.Generate(ctx, Request{
		RequestID: requestID,
		ChatID:    chatID,
		Target:    index,
		Anchor:    -1,
		Include:   tracker.IncludeDynamic,
	})
}

// Override stores a manually authored tracker on a message. text may be
// wrapped in <tracker> tags or be a bare payload in format. Authored values
// win over the tracker before the message, STATIC ones included, and omitted
// fields keep their previous values. It cancels any generation running for
// the same message.
func (g *Generator) Override(ctx context.Context, chatID uuid.UUID, index int, text string, format tracker.Format) (*tracker.Object, error) {
	if format == "" {
		format = g.settings.Format
	}
	var candidate *tracker.Object
	var err error
	if _, ok := tracker.ExtractPayload(text); ok {
		candidate, err = tracker.Deserialize(text, format)
	} else {
		candidate, err = tracker.Decode(text, format)
	}
	if err != nil {
		return nil, err
	}

	ctx, done := g.inflight.begin(ctx, cycleKey{chatID: chatID, target: index})
	defer done()

	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, err
	}

	unlock := g.inflight.lock(chatID)
	defer unlock()

	c, err := g.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, err := c.Message(index); err != nil {
		return nil, err
	}

	merged := tracker.Update(baseline(c, index-1, schema), candidate, schema, tracker.UpdateOptions{
		Include:  tracker.IncludeAll,
		Full:     true,
		Authored: true,
	})
	for _, e := range merged.ShapeErrors {
		g.logger.Warn("Ignored tracker value in override", "chat_id", chatID.String(), "error", e)
	}
	if err := g.storage.SaveTracker(ctx, chatID, index, merged.Instance); err != nil {
		return nil, fmt.Errorf("failed to save tracker: %w", err)
	}
	g.logger.Info("Tracker overridden", "chat_id", chatID.String(), "message_index", index)
	return merged.Instance, nil
}

// Clear removes the tracker of a message. Like Override it cancels any
// generation running for the same message, so the tracker cannot come back
// from a cycle that started before the clear.
func (g *Generator) Clear(ctx context.Context, chatID uuid.UUID, index int) error {
	ctx, done := g.inflight.begin(ctx, cycleKey{chatID: chatID, target: index})
	defer done()

	unlock := g.inflight.lock(chatID)
	defer unlock()

	if err := g.storage.SaveTracker(ctx, chatID, index, nil); err != nil {
		return fmt.Errorf("failed to clear tracker: %w", err)
	}
	g.logger.Info("Tracker cleared", "chat_id", chatID.String(), "message_index", index)
	return nil
}

// Injection is the tracker block placed into the roleplay prompt.
type Injection struct {
	// Text is empty when no tracker applies.
	Text string `json:"text"`
	// Depth counts the non-system messages after the injection point.
	Depth int `json:"depth"`
	// Source is the message the tracker came from, or -1.
	Source int `json:"source"`
}

// Inject builds the injection for a reply following message index: the
// newest tracker at or before it, cleaned for display. With injection turned
// off in the settings the injection is always empty.
func (g *Generator) Inject(ctx context.Context, chatID uuid.UUID, index int) (*Injection, error) {
	c, err := g.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		index = len(c.Messages) - 1
	}
	if _, err := c.Message(index); err != nil {
		return nil, err
	}
	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, err
	}

	if !g.settings.InjectionEnabled {
		return &Injection{Source: -1}, nil
	}
	inj := &Injection{Source: -1, Depth: g.settings.InjectionDepth(0)}
	prev, at := c.LastTracker(index)
	if prev == nil || !tracker.Exists(prev, schema) {
		return inj, nil
	}
	inj.Source = at
	inj.Depth = g.settings.InjectionDepth(c.Depth(at))
	inj.Text = g.settings.Injection(tracker.Clean(prev, schema, tracker.CleanOptions{
		Include: tracker.IncludeAll,
		Format:  tracker.FormatYAML,
	}))
	return inj, nil
}
