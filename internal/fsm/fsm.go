// Package fsm holds the focus state machine driven by capture results.
package fsm

import "fmt"

type State string

type Event string

const (
	StateUnfocused State = "unfocused"
	StateFocused   State = "focused"
)

const (
	// EventTextSeen fires when a capture returned non-empty text.
	EventTextSeen Event = "text_seen"
	// EventTextLost fires when a capture returned nothing.
	EventTextLost Event = "text_lost"
)

// Transition returns the state after event. Repeated events keep the state.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateUnfocused, StateFocused:
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	switch event {
	case EventTextSeen:
		return StateFocused, nil
	case EventTextLost:
		return StateUnfocused, nil
	default:
		return current, invalidTransition(current, event)
	}
}

// EventFor maps a capture result to its event.
func EventFor(text string) Event {
	if text == "" {
		return EventTextLost
	}
	return EventTextSeen
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
