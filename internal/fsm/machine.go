package fsm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the transition history when no limit is given.
const DefaultHistoryLimit = 64

// Transition is one accepted state change.
type Transition struct {
	From   State
	To     State
	At     time.Time
	Reason Reason
	Detail string
}

// Observer receives accepted transitions in registration order.
type Observer func(Transition)

type subscription struct {
	id int
	fn Observer
}

// Machine guards the current state and records accepted transitions.
type Machine struct {
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	history   []Transition
	limit     int
	errDetail string
	observers []subscription
	nextID    int
}

// NewMachine constructs a machine in idle with a capped history.
func NewMachine(logger *slog.Logger, historyLimit int) *Machine {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Machine{
		logger: logger,
		now:    time.Now,
		state:  StateIdle,
		limit:  historyLimit,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Error returns the detail recorded when the machine last entered error.
// It is empty outside the error state.
func (m *Machine) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errDetail
}

// History returns a copy of the retained transitions, oldest first.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe registers fn and returns a func that removes it.
func (m *Machine) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, subscription{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, sub := range m.observers {
				if sub.id == id {
					m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Transition moves to target when the edge is permitted. It returns false
// and leaves state untouched otherwise.
func (m *Machine) Transition(target State, reason Reason, detail string) bool {
	return m.transition(nil, target, reason, detail)
}

func (m *Machine) transition(guard func(State) bool, target State, reason Reason, detail string) bool {
	m.mu.Lock()
	if guard != nil && !guard(m.state) {
		m.mu.Unlock()
		return false
	}
	if err := Validate(m.state, target, reason); err != nil {
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Debug("transition rejected", "error", err.Error())
		}
		return false
	}

	tr := Transition{
		From:   m.state,
		To:     target,
		At:     m.now(),
		Reason: reason,
		Detail: detail,
	}
	m.state = target
	if target == StateError {
		m.errDetail = detail
	} else {
		m.errDetail = ""
	}
	m.history = append(m.history, tr)
	if overflow := len(m.history) - m.limit; overflow > 0 {
		m.history = append(m.history[:0:0], m.history[overflow:]...)
	}
	observers := make([]Observer, len(m.observers))
	for i, sub := range m.observers {
		observers[i] = sub.fn
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Debug("state transition",
			"from", string(tr.From),
			"to", string(tr.To),
			"reason", string(tr.Reason),
			"detail", tr.Detail,
		)
	}
	for _, fn := range observers {
		m.notify(fn, tr)
	}
	return true
}

func (m *Machine) notify(fn Observer, tr Transition) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("state observer panicked",
				"to", string(tr.To),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	fn(tr)
}

// Start begins a cycle from idle.
func (m *Machine) Start(reason Reason) bool {
	return m.from(StateIdle, StateStarting, reason)
}

// MarkCaptureStarted confirms capture is producing frames.
func (m *Machine) MarkCaptureStarted(reason Reason) bool {
	return m.from(StateStarting, StateListening, reason)
}

// Stop ends listening with the given reason.
func (m *Machine) Stop(reason Reason) bool {
	return m.from(StateListening, StateStopping, reason)
}

// MarkCaptureStopped hands the captured audio to processing.
func (m *Machine) MarkCaptureStopped(reason Reason) bool {
	return m.from(StateStopping, StateProcessing, reason)
}

// MarkSTTComplete moves processing to injecting when no refinement ran.
func (m *Machine) MarkSTTComplete() bool {
	return m.from(StateProcessing, StateInjecting, ReasonSTTComplete)
}

// MarkPostProcessComplete moves processing to injecting after refinement.
func (m *Machine) MarkPostProcessComplete() bool {
	return m.from(StateProcessing, StateInjecting, ReasonPostprocessComplete)
}

// MarkComplete finishes the cycle after delivery.
func (m *Machine) MarkComplete() bool {
	return m.from(StateInjecting, StateIdle, ReasonInjectionComplete)
}

// MarkError enters the error state from any non-error state.
func (m *Machine) MarkError(detail string) bool {
	return m.transition(func(s State) bool { return s != StateError }, StateError, ReasonError, detail)
}

// Reset returns to idle from any state other than idle.
func (m *Machine) Reset() bool {
	return m.transition(func(s State) bool { return s != StateIdle }, StateIdle, ReasonAbort, "")
}

func (m *Machine) from(expected State, target State, reason Reason) bool {
	return m.transition(func(s State) bool { return s == expected }, target, reason, "")
}
