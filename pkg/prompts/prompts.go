package prompts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// ContextTemplate frames the system part of a tracker request.
const ContextTemplate = `{{trackerSystemPrompt}}

<!-- Start of Context -->

{{characterDescriptions}}

### Example Trackers
<!-- Start of Example Trackers -->
{{trackerExamples}}
<!-- End of Example Trackers -->

### Recent Messages with Trackers
{{recentMessages}}

### Current Tracker
<tracker>
{{currentTracker}}
</tracker>

<!-- End of Context -->`

// SystemPrompt instructs the model how to maintain the tracker.
const SystemPrompt = `You are a Scene Tracker Assistant, tasked with providing clear, consistent, and structured updates to a scene tracker for a roleplay. Use the latest message, previous tracker details, and context from recent messages to accurately update the tracker. Your response must follow the specified {{trackerFormat}} structure exactly, ensuring that each field is filled and complete. If specific information is not provided, make reasonable assumptions based on prior descriptions, logical inferences, or default character details.

### Key Instructions:
1. **Tracker Format**: Always respond with a complete tracker in {{trackerFormat}} format. Every field must be present in the response, even if unchanged. Do not omit fields or change the {{trackerFormat}} structure.
2. **Default Assumptions for Missing Information**:
   - **Character Details**: If no new details are provided for a character, assume reasonable defaults (e.g., hairstyle, posture, or attire based on previous entries or context).
   - **Outfit**: Describe the complete outfit for each character, using specific details for color, fabric, and style (e.g., "fitted black leather jacket with silver studs on the collar"). **Underwear must always be included in the outfit description.** If underwear is intentionally missing, specify this clearly in the description (e.g., "No bra", "No panties"). If the character is undressed, list the entire outfit.
   - **StateOfDress**: Describe how put-together or disheveled the character appears, including any removed clothing. If the character is undressed, indicate where discarded items are placed.
3. **Incremental Time Progression**:
   - Adjust time in small increments, ideally only a few seconds per update, to reflect realistic scene progression. Avoid large jumps unless a significant time skip (e.g., sleep, travel) is explicitly stated.
   - Format the time as "HH:MM:SS; MM/DD/YYYY (Day Name)".
4. **Context-Appropriate Times**:
   - Ensure that the time aligns with the setting. For example, if the scene takes place in a public venue (e.g., a mall), choose an appropriate time within standard operating hours.
5. **Location Format**: Avoid unintended reuse of specific locations from previous examples or responses. Provide specific, relevant, and detailed locations based on the context, using the format:
   - **Example**: "Food court, second floor near east wing entrance, Madison Square Mall, Los Angeles, CA"
6. **Consistency**: Match field structures precisely, maintaining {{trackerFormat}} syntax. If no changes occur in a field, keep the most recent value.
7. **Topics Format**: Ensure topics are one- or two-word keywords relevant to the scene to help trigger contextual information. Avoid long phrases.
8. **Avoid Redundancies**: Use only details provided or logically inferred from context. Do not introduce speculative or unnecessary information.
9. **Focus and Pause**: Treat each scene update as a standalone, complete entry. Respond with the full tracker every time, even if there are only minor updates.

### Tracker Template
Return your response in the following {{trackerFormat}} structure, following this format precisely:

` + "```" + `
<tracker>
{{defaultTracker}}
</tracker>
` + "```" + `

### Important Reminders:
1. **Recent Messages and Current Tracker**: Before updating, always consider the recent messages and the provided <Current Tracker> to ensure all changes are accurately represented.
2. **Structured Response**: Do not add any extra information outside of the {{trackerFormat}} tracker structure.
3. **Complete Entries**: Always provide the full tracker in {{trackerFormat}}, even if only minor updates are made.

Your primary objective is to ensure clarity, consistency, and structured responses for scene tracking in {{trackerFormat}} format, providing complete details even when specifics are not explicitly stated.`

// RequestPrompt is the user part of a tracker request.
const RequestPrompt = `[Analyze the previous message along with the recent messages provided below and update the current scene tracker based on logical inferences and explicit details. Pause and ensure only the tracked data is provided, formatted in {{trackerFormat}}. Avoid adding, omitting, or rearranging fields unless specified. Respond with the full tracker every time.

### Response Rules:
{{trackerFieldPrompt}}

Ensure the response remains consistent, strictly follows this structure in {{trackerFormat}}, and omits any extra data or deviations. You MUST enclose the tracker in <tracker></tracker> tags]`

// RecentMessagesTemplate renders one history message.
const RecentMessagesTemplate = `{{#if tracker}}Tracker: <tracker>
{{tracker}}
</tracker>
{{/if}}{{char}}: {{message}}`

// CharacterDescriptionTemplate renders one participant description.
const CharacterDescriptionTemplate = `### {{char}}'s Description
{{charDescription}}`

// RoleplayPrompt precedes the tracker when it is injected into a roleplay
// prompt.
const RoleplayPrompt = "Treat the tracker block as backstage notes. Never include <tracker> tags or describe tracker updates in your reply. Stay fully in character and respond only with the dialogue or actions the character would naturally deliver, using the tracker information purely as reference."

// DefaultResponseLength is the token limit used when ResponseLength is 0.
const DefaultResponseLength = 1000

// Settings holds the generation settings. Zero numbers are meaningful, so a
// settings file is decoded over DefaultSettings rather than merged.
type Settings struct {
	Format tracker.Format `yaml:"format" json:"format"`

	// NumberOfMessages is how many recent messages the model reads.
	NumberOfMessages int `yaml:"number_of_messages" json:"number_of_messages"`
	// GenerateFromMessage is the first message index that gets a tracker
	// automatically.
	GenerateFromMessage int `yaml:"generate_from_message" json:"generate_from_message"`
	// MinimumDepth is the shallowest depth a tracker is injected at.
	MinimumDepth int `yaml:"minimum_depth" json:"minimum_depth"`
	// ResponseLength caps the model response in tokens; 0 means the default.
	ResponseLength int `yaml:"response_length" json:"response_length"`

	GenerationTarget chat.GenerationTarget `yaml:"generation_target" json:"generation_target"`

	ContextTemplate              string `yaml:"context_template" json:"context_template"`
	SystemPrompt                 string `yaml:"system_prompt" json:"system_prompt"`
	RequestPrompt                string `yaml:"request_prompt" json:"request_prompt"`
	RecentMessagesTemplate       string `yaml:"recent_messages_template" json:"recent_messages_template"`
	CharacterDescriptionTemplate string `yaml:"character_description_template" json:"character_description_template"`
	RoleplayPrompt               string `yaml:"roleplay_prompt" json:"roleplay_prompt"`

	// InjectionEnabled controls whether trackers are offered for injection
	// into the roleplay prompt.
	InjectionEnabled bool `yaml:"injection_enabled" json:"injection_enabled"`

	// PreprocessingEnabled runs RegexScripts, in order, over every message
	// the model reads.
	PreprocessingEnabled bool          `yaml:"preprocessing_enabled" json:"preprocessing_enabled"`
	RegexScripts         []RegexScript `yaml:"regex_scripts" json:"regex_scripts"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Format:                       tracker.FormatYAML,
		NumberOfMessages:             5,
		GenerateFromMessage:          3,
		MinimumDepth:                 0,
		ResponseLength:               0,
		GenerationTarget:             chat.TargetBoth,
		ContextTemplate:              ContextTemplate,
		SystemPrompt:                 SystemPrompt,
		RequestPrompt:                RequestPrompt,
		RecentMessagesTemplate:       RecentMessagesTemplate,
		CharacterDescriptionTemplate: CharacterDescriptionTemplate,
		RoleplayPrompt:               RoleplayPrompt,
		InjectionEnabled:             true,
	}
}

// Validate checks the settings and normalizes the enumerations.
func (s *Settings) Validate() error {
	format, err := tracker.ParseFormat(string(s.Format))
	if err != nil {
		return err
	}
	s.Format = format

	target, err := chat.ParseGenerationTarget(string(s.GenerationTarget))
	if err != nil {
		return err
	}
	s.GenerationTarget = target

	if s.NumberOfMessages < 1 {
		return fmt.Errorf("number_of_messages must be at least 1, got %d", s.NumberOfMessages)
	}
	if s.GenerateFromMessage < 0 || s.MinimumDepth < 0 || s.ResponseLength < 0 {
		return errors.New("generate_from_message, minimum_depth and response_length cannot be negative")
	}
	if s.ContextTemplate == "" || s.RequestPrompt == "" {
		return errors.New("context_template and request_prompt are required")
	}
	if _, err := NewPreprocessor(s.RegexScripts); err != nil {
		return err
	}
	return nil
}

// Preprocessor returns the compiled regex scripts, or nil when
// preprocessing is off.
func (s Settings) Preprocessor() (*Preprocessor, error) {
	if !s.PreprocessingEnabled || len(s.RegexScripts) == 0 {
		return nil, nil
	}
	return NewPreprocessor(s.RegexScripts)
}

// MaxTokens returns the response token limit.
func (s Settings) MaxTokens() int {
	if s.ResponseLength > 0 {
		return s.ResponseLength
	}
	return DefaultResponseLength
}

// InjectionDepth returns the depth a tracker is injected at for a message at
// the given depth.
func (s Settings) InjectionDepth(depth int) int {
	return max(s.MinimumDepth, depth)
}

// Injection wraps display text of a tracker for a roleplay prompt. It
// returns "" when there is nothing to inject.
func (s Settings) Injection(trackerText string) string {
	if trackerText == "" {
		return ""
	}
	block := tracker.Wrap(trackerText)
	rp := strings.TrimSpace(s.RoleplayPrompt)
	if rp == "" {
		return block
	}
	return rp + "\n" + block
}
