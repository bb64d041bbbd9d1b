// Package fsm holds the dictation state machine: the adjacency table, the
// guarded Machine, and its transition history and observers.
package fsm

import "fmt"

// State is one dictation lifecycle state.
type State string

// Reason records why a transition happened.
type Reason string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateListening  State = "listening"
	StateStopping   State = "stopping"
	StateProcessing State = "processing"
	StateInjecting  State = "injecting"
	StateError      State = "error"
)

const (
	ReasonUserToggle          Reason = "user_toggle"
	ReasonHotkey              Reason = "hotkey"
	ReasonSilenceDetected     Reason = "silence_detected"
	ReasonSTTComplete         Reason = "stt_complete"
	ReasonPostprocessComplete Reason = "postprocess_complete"
	ReasonInjectionComplete   Reason = "injection_complete"
	ReasonError               Reason = "error"
	ReasonAbort               Reason = "abort"
)

var adjacency = map[State][]State{
	StateIdle:       {StateStarting, StateError},
	StateStarting:   {StateListening, StateIdle, StateError},
	StateListening:  {StateStopping, StateProcessing, StateIdle, StateError},
	StateStopping:   {StateProcessing, StateIdle, StateError},
	StateProcessing: {StateInjecting, StateIdle, StateError},
	StateInjecting:  {StateIdle, StateError},
	StateError:      {StateIdle},
}

// States lists every known state in lifecycle order.
func States() []State {
	return []State{
		StateIdle,
		StateStarting,
		StateListening,
		StateStopping,
		StateProcessing,
		StateInjecting,
		StateError,
	}
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from State, to State) bool {
	for _, next := range adjacency[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected transition request.
type TransitionError struct {
	From   State
	To     State
	Reason Reason
}

func (e *TransitionError) Error() string {
	if _, known := adjacency[e.From]; !known {
		return fmt.Sprintf("unknown state %q", e.From)
	}
	return fmt.Sprintf("invalid transition: %s --(%s)--> %s", e.From, e.Reason, e.To)
}

// Validate returns a *TransitionError when from -> to is not permitted.
func Validate(from State, to State, reason Reason) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to, Reason: reason}
}
