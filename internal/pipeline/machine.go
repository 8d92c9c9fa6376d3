package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
)

// State is a stage of a single company run.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateSaved      State = "saved"
	StateFailed     State = "failed"
)

// Terminal reports whether no further events are accepted in s.
func (s State) Terminal() bool {
	return s == StateSaved || s == StateFailed
}

// Event drives a transition between states.
type Event string

const (
	EventStart         Event = "start"
	EventDomainFound   Event = "domain_found"
	EventResolveFailed Event = "resolve_failed"
	EventTextObtained  Event = "text_obtained"
	EventFetchFailed   Event = "fetch_failed"
	EventAnalysisReady Event = "analysis_ready"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateResolving,
	},
	StateResolving: {
		EventDomainFound:   StateFetching,
		EventResolveFailed: StateFailed,
	},
	StateFetching: {
		EventTextObtained: StateExtracting,
		EventFetchFailed:  StateFailed,
	},
	StateExtracting: {
		EventAnalysisReady: StateSaved,
	},
}

// Transition records one accepted event.
type Transition struct {
	From  State     `json:"from"`
	Event Event     `json:"event"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
}

// Machine tracks the state of one run. It is not safe for concurrent use;
// each run owns its own Machine.
type Machine struct {
	state   State
	history []Transition
	now     func() time.Time
}

// NewMachine returns a Machine in StateIdle.
func NewMachine() *Machine {
	return &Machine{state: StateIdle, now: time.Now}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Fire applies ev. Events outside the transition table are rejected and
// leave the state unchanged.
func (m *Machine) Fire(ev Event) error {
	next, ok := transitions[m.state][ev]
	if !ok {
		return eris.Errorf("pipeline: illegal event %s in state %s", ev, m.state)
	}
	m.history = append(m.history, Transition{
		From:  m.state,
		Event: ev,
		To:    next,
		At:    m.now().UTC(),
	})
	m.state = next
	return nil
}

// History returns a copy of the accepted transitions in order.
func (m *Machine) History() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}
