package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded is returned by a cycle cancelled because a newer request
	// targets the same message.
	ErrSuperseded = errors.New("generation superseded by a newer request")

	// ErrNoAnchor is returned when no message precedes the target.
	ErrNoAnchor = errors.New("no message to generate from")

	// ErrSkipped is returned by Auto when the message does not get a tracker
	// automatically.
	ErrSkipped = errors.New("message skipped by generation settings")
)

// TransportError reports that the model could not be reached or answered
// with nothing, on both the primary and the fallback path.
type TransportError struct {
	Primary  error
	Fallback error
}

func (e *TransportError) Error() string {
	if e.Fallback == nil {
		return fmt.Sprintf("tracker generation failed: %v", e.Primary)
	}
	return fmt.Sprintf("tracker generation failed: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *TransportError) Unwrap() []error {
	errs := []error{e.Primary}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

// State is a step of a generation cycle.
type State string

const (
	StateIdle             State = "IDLE"
	StatePromptBuilt      State = "PROMPT_BUILT"
	StateAwaitingModel    State = "AWAITING_MODEL"
	StateAwaitingFallback State = "AWAITING_MODEL_FALLBACK"
	StateParseOK          State = "PARSE_OK"
	StateParseFail        State = "PARSE_FAIL"
	StateMerged           State = "MERGED"
	StateFailed           State = "FAILED"
)
