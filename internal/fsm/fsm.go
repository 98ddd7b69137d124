// Package fsm defines the voice capture lifecycle as a pure transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
)

const (
	EventStart     Event = "start"
	EventSpeechEnd Event = "speech_end"
	EventTimeout   Event = "timeout"
	EventFail      Event = "fail"
	EventReset     Event = "reset"
)

// Terminal reports whether a capture in this state has finished.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateFailed:
		return true
	default:
		return false
	}
}

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventSpeechEnd:
			return StateCompleted, nil
		case EventTimeout:
			return StateTimedOut, nil
		case EventFail:
			return StateFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted, StateTimedOut, StateFailed:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
