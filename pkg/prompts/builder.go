package prompts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/display"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// Builder assembles the prompts of a tracker request using a fluent
// interface. The model reads the chat up to the anchor message.
type Builder struct {
	chat     *chat.Chat
	schema   *tracker.Schema
	settings Settings
	include  tracker.Include
	anchor   int

	pre     *Preprocessor
	preDone bool
}

// New creates a builder with the default settings. The anchor defaults to
// the newest non-system message and the include policy to dynamic fields.
func New() *Builder {
	return &Builder{
		settings: DefaultSettings(),
		include:  tracker.IncludeDynamic,
		anchor:   -1,
	}
}

// WithChat sets the conversation.
func (b *Builder) WithChat(c *chat.Chat) *Builder {
	b.chat = c
	return b
}

// WithSchema sets the field schema.
func (b *Builder) WithSchema(s *tracker.Schema) *Builder {
	b.schema = s
	return b
}

// WithSettings sets templates, limits and preprocessing.
func (b *Builder) WithSettings(s Settings) *Builder {
	b.settings = s
	b.pre, b.preDone = nil, false
	return b
}

// WithInclude sets which fields the model is asked for.
func (b *Builder) WithInclude(include tracker.Include) *Builder {
	b.include = include
	return b
}

// WithAnchor sets the last message the model reads. Negative means the
// newest non-system message.
func (b *Builder) WithAnchor(index int) *Builder {
	b.anchor = index
	return b
}

// Build returns the system and user messages of the request.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	system, err := b.BuildSystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("error building system prompt: %w", err)
	}
	request, err := b.BuildRequestPrompt()
	if err != nil {
		return nil, fmt.Errorf("error building request prompt: %w", err)
	}
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: system},
		{Role: chat.ChatRoleUser, Content: request},
	}, nil
}

// BuildSystemPrompt renders the context template: instructions, character
// descriptions, example trackers, recent messages and the current tracker.
func (b *Builder) BuildSystemPrompt() (string, error) {
	anchor, err := b.resolve()
	if err != nil {
		return "", err
	}

	systemPrompt, err := b.trackerSystemPrompt()
	if err != nil {
		return "", err
	}
	examples, err := b.exampleTrackers()
	if err != nil {
		return "", err
	}
	recent, err := b.recentMessages(anchor)
	if err != nil {
		return "", err
	}
	current, err := b.currentTracker(anchor)
	if err != nil {
		return "", err
	}

	return fill(b.settings.ContextTemplate, map[string]string{
		"trackerSystemPrompt":   systemPrompt,
		"characterDescriptions": b.characterDescriptions(),
		"trackerExamples":       examples,
		"recentMessages":        recent,
		"currentTracker":        current,
		"trackerFormat":         string(b.settings.Format),
		"trackerFieldPrompt":    tracker.BuildFieldPrompt(b.schema, b.include),
	}), nil
}

// BuildRequestPrompt renders the request template for the anchor message.
func (b *Builder) BuildRequestPrompt() (string, error) {
	anchor, err := b.resolve()
	if err != nil {
		return "", err
	}
	pre, err := b.preprocessor()
	if err != nil {
		return "", err
	}
	var message string
	if anchor >= 0 {
		message = pre.Apply(tracker.StripTags(b.chat.Messages[anchor].Text))
	}
	return fill(b.settings.RequestPrompt, map[string]string{
		"message":            message,
		"trackerFieldPrompt": tracker.BuildFieldPrompt(b.schema, b.include),
		"trackerFormat":      string(b.settings.Format),
	}), nil
}

// Prompt joins the system and request prompts into a single text.
func Prompt(messages []chat.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (b *Builder) resolve() (int, error) {
	if b.chat == nil {
		return 0, errors.New("chat is required")
	}
	if b.schema == nil {
		return 0, errors.New("schema is required")
	}
	if b.anchor < 0 {
		return b.chat.LastNonSystem(), nil
	}
	if _, err := b.chat.Message(b.anchor); err != nil {
		return 0, err
	}
	return b.anchor, nil
}

func (b *Builder) trackerSystemPrompt() (string, error) {
	def, err := tracker.BuildInstance(b.schema, b.include, tracker.Defaults())
	if err != nil {
		return "", err
	}
	text, err := tracker.Encode(def, b.settings.Format)
	if err != nil {
		return "", err
	}
	names := []string{b.chat.UserName}
	for _, c := range b.chat.Characters {
		names = append(names, c.Name)
	}
	return fill(b.settings.SystemPrompt, map[string]string{
		"charNames":      joinNames(names),
		"defaultTracker": text,
		"trackerFormat":  string(b.settings.Format),
	}), nil
}

func (b *Builder) characterDescriptions() string {
	var parts []string
	add := func(name, description string) {
		parts = append(parts, fill(b.settings.CharacterDescriptionTemplate, map[string]string{
			"char":            name,
			"charDescription": description,
		}))
	}
	if b.chat.Persona != "" {
		add(b.chat.UserName, b.chat.Persona)
	}
	for _, c := range b.chat.Characters {
		add(c.Name, c.Description)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func (b *Builder) exampleTrackers() (string, error) {
	examples, err := tracker.ExampleInstances(b.schema, b.include)
	if err != nil {
		return "", err
	}
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		text, err := tracker.Encode(ex, b.settings.Format)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, "<START>\n"+tracker.Wrap(text)+"\n<END>")
	}
	return strings.Join(blocks, "\n"), nil
}

func (b *Builder) recentMessages(anchor int) (string, error) {
	if anchor < 0 {
		return "", nil
	}
	pre, err := b.preprocessor()
	if err != nil {
		return "", err
	}
	indexes := b.chat.Recent(anchor, b.settings.NumberOfMessages)
	parts := make([]string, 0, len(indexes))
	for _, i := range indexes {
		m := b.chat.Messages[i]
		var text string
		if m.Tracker.Len() > 0 {
			var err error
			text, err = tracker.Serialize(m.Tracker, b.schema, b.include, b.settings.Format)
			if err != nil {
				return "", fmt.Errorf("message %d: %w", i, err)
			}
		}
		parts = append(parts, fill(b.settings.RecentMessagesTemplate, map[string]string{
			"char":    m.Name,
			"message": pre.Apply(tracker.StripTags(m.Text)),
			"tracker": text,
		}))
	}
	return strings.Join(parts, "\n"), nil
}

// preprocessor compiles the regex scripts once per builder.
func (b *Builder) preprocessor() (*Preprocessor, error) {
	if !b.preDone {
		pre, err := b.settings.Preprocessor()
		if err != nil {
			return nil, err
		}
		b.pre, b.preDone = pre, true
	}
	return b.pre, nil
}

// currentTracker is the tracker of the anchor or the last one before it,
// falling back to the schema defaults.
func (b *Builder) currentTracker(anchor int) (string, error) {
	if last, _ := b.chat.LastTracker(anchor); last != nil {
		return tracker.Serialize(last, b.schema, b.include, b.settings.Format)
	}
	def, err := tracker.BuildInstance(b.schema, b.include, tracker.Defaults())
	if err != nil {
		return "", err
	}
	return tracker.Encode(def, b.settings.Format)
}

// fill renders tmpl with plain text variables.
func fill(tmpl string, vars map[string]string) string {
	obj := tracker.NewObject()
	for k, v := range vars {
		obj.Set(k, tracker.Scalar(v))
	}
	return display.Render(tmpl, obj)
}

// joinNames renders "a", "a and b" or "a, b, and c".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
}

// BuildMessages is a convenience function for the common case.
func BuildMessages(c *chat.Chat, s *tracker.Schema, settings Settings, include tracker.Include, anchor int) ([]chat.ChatMessage, error) {
	return New().
		WithChat(c).
		WithSchema(s).
		WithSettings(settings).
		WithInclude(include).
		WithAnchor(anchor).
		Build()
}
