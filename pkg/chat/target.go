package chat

import (
	"fmt"
	"strings"
)

// GenerationTarget selects which messages get a tracker automatically.
type GenerationTarget string

const (
	TargetBoth      GenerationTarget = "both"
	TargetUser      GenerationTarget = "user"
	TargetCharacter GenerationTarget = "character"
	TargetNone      GenerationTarget = "none"
)

// ParseGenerationTarget parses a target name. Empty input means both.
func ParseGenerationTarget(s string) (GenerationTarget, error) {
	switch t := GenerationTarget(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TargetBoth, nil
	case TargetBoth, TargetUser, TargetCharacter, TargetNone:
		return t, nil
	}
	return "", fmt.Errorf("unknown generation target %q", s)
}

// ShouldGenerate reports whether msg gets a tracker under target. System
// messages never do.
func ShouldGenerate(msg Message, target GenerationTarget) bool {
	if msg.IsSystem {
		return false
	}
	switch target {
	case TargetBoth:
		return true
	case TargetUser:
		return msg.IsUser
	case TargetCharacter:
		return !msg.IsUser
	}
	return false
}
