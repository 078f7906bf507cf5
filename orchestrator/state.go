package orchestrator

import "github.com/smarter-sh/smarter-sub001/core"

// State is a phase of one orchestration call.
type State int

const (
	StateInit State = iota
	StateContextBuilt
	StateFirstRequested
	StateFirstResponded
	StateToolsPending
	StateToolsDispatched
	StateSecondRequested
	StateSecondResponded
	StateSuccess
	StateFailed
)

var stateNames = [...]string{
	"INIT",
	"CONTEXT_BUILT",
	"FIRST_REQUESTED",
	"FIRST_RESPONDED",
	"TOOLS_PENDING",
	"TOOLS_DISPATCHED",
	"SECOND_REQUESTED",
	"SECOND_RESPONDED",
	"SUCCESS",
	"FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateSuccess || s == StateFailed }

// transitions lists the forward edges; FAILED is reachable from every
// non-terminal state.
var transitions = map[State][]State{
	StateInit:            {StateContextBuilt},
	StateContextBuilt:    {StateFirstRequested},
	StateFirstRequested:  {StateFirstResponded},
	StateFirstResponded:  {StateSuccess, StateToolsPending},
	StateToolsPending:    {StateToolsDispatched},
	StateToolsDispatched: {StateSecondRequested},
	StateSecondRequested: {StateSecondResponded},
	StateSecondResponded: {StateSuccess},
}

// machine tracks the current state and the path taken.
type machine struct {
	state State
	path  []State
}

func newMachine() *machine {
	return &machine{state: StateInit, path: []State{StateInit}}
}

func (m *machine) to(next State) error {
	if m.state.Terminal() {
		return core.Errorf(core.ErrIllegalState, "orchestrator.transition", "%s is terminal", m.state)
	}
	if next != StateFailed {
		allowed := false
		for _, s := range transitions[m.state] {
			if s == next {
				allowed = true
				break
			}
		}
		if !allowed {
			return core.Errorf(core.ErrIllegalState, "orchestrator.transition", "%s -> %s is not a valid transition", m.state, next)
		}
	}
	m.state = next
	m.path = append(m.path, next)
	return nil
}

func (m *machine) require(s State) error {
	if m.state != s {
		return core.Errorf(core.ErrIllegalState, "orchestrator.state", "expected %s, in %s", s, m.state)
	}
	return nil
}
