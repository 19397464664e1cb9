package worker

import (
	"go.uber.org/atomic"
)

// State is a lifecycle phase of a worker or of a render task on it.
//
// A worker moves from Init to AwaitingAssignment once it is registered to the cluster.
// A render task is created by Assign, moves to Computing on Render,
// and ends in Done (every pixel sent) or Failed.
type State int32

const (
	Init State = iota
	AwaitingAssignment
	Assigned
	Computing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case AwaitingAssignment:
		return "AWAITING_ASSIGNMENT"
	case Assigned:
		return "ASSIGNED"
	case Computing:
		return "COMPUTING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

type stateMachine struct {
	v atomic.Int32
}

func newStateMachine(initial State) *stateMachine {
	sm := &stateMachine{}
	sm.v.Store(int32(initial))
	return sm
}

func (sm *stateMachine) Load() State {
	return State(sm.v.Load())
}

// Transition moves the state from one to another. It returns false if the current state is not from.
func (sm *stateMachine) Transition(from, to State) bool {
	return sm.v.CAS(int32(from), int32(to))
}

func (sm *stateMachine) Store(s State) {
	sm.v.Store(int32(s))
}
