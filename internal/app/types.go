package app

// Phase is the controller lifecycle. Editing, running and submitting swap
// among themselves; loading and closing bracket a question's lifetime.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseReady      Phase = "ready"
	PhaseEditing    Phase = "editing"
	PhaseRunning    Phase = "running"
	PhaseSubmitting Phase = "submitting"
	PhaseClosing    Phase = "closing"
)

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseLoading},
	PhaseLoading:    {PhaseReady, PhaseIdle},
	PhaseReady:      {PhaseEditing, PhaseRunning, PhaseSubmitting, PhaseClosing, PhaseLoading},
	PhaseEditing:    {PhaseReady, PhaseRunning, PhaseSubmitting, PhaseClosing, PhaseLoading},
	PhaseRunning:    {PhaseEditing, PhaseClosing},
	PhaseSubmitting: {PhaseEditing, PhaseClosing},
	PhaseClosing:    {PhaseIdle},
}

func validPhaseChange(from, to Phase) bool {
	if from == to {
		return true
	}
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// canOperate reports whether a run or submit may start from the given
// phase.
func canOperate(p Phase) bool {
	return p == PhaseReady || p == PhaseEditing
}

// editablePhase reports whether editor content changes are accepted. Edits
// keep landing during running and submitting; only load and teardown
// freeze the file set.
func editablePhase(p Phase) bool {
	return p == PhaseReady || p == PhaseEditing || p == PhaseRunning || p == PhaseSubmitting
}
