package recorder

import (
	"errors"
	"fmt"
)

// State is the recording lifecycle state. Exactly one is active.
type State int

const (
	Idle State = iota
	WebcamPreview
	Countdown
	Capturing
	Freezing
	Finalizing
)

var stateNames = map[State]string{
	Idle:          "idle",
	WebcamPreview: "webcam_preview",
	Countdown:     "countdown",
	Capturing:     "capturing",
	Freezing:      "freezing",
	Finalizing:    "finalizing",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown recorder state %q", text)
}

// Active reports whether a session exists in this state.
func (s State) Active() bool {
	return s != Idle
}

// Mode is the kind of session.
type Mode string

const (
	ModeLive Mode = "live"
	ModeEdit Mode = "edit"
)

// ErrInvalidState is returned when a command does not apply to the current
// state.
var ErrInvalidState = errors.New("invalid recorder state")

func invalidState(command string, state State) error {
	return fmt.Errorf("%w: %s not allowed while %s", ErrInvalidState, command, state)
}
