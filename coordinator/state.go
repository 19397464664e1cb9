package coordinator

// State is a phase of a render driven by the coordinator.
type State string

const (
	Init      State = "INIT"
	Assigning State = "ASSIGNING"
	Gathering State = "GATHERING"
	Writing   State = "WRITING"
	Done      State = "DONE"
	Failed    State = "FAILED"
)

var nextStates = map[State]State{
	Init:      Assigning,
	Assigning: Gathering,
	Gathering: Writing,
	Writing:   Done,
}

// canTransition reports whether the coordinator may move from one state to another.
// Every non-terminal state can fail.
func canTransition(from, to State) bool {
	if to == Failed {
		return from != Done && from != Failed
	}
	return nextStates[from] == to
}
