package wizard

import "fmt"

// State is a step of the registration wizard.
type State int

const (
	Editing State = iota
	Reviewing
	Submitting
	Failed
	Succeeded
)

var stateNames = map[State]string{
	Editing:    "editing",
	Reviewing:  "reviewing",
	Submitting: "submitting",
	Failed:     "failed",
	Succeeded:  "succeeded",
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

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown wizard state %q", text)
}
