// ABOUTME: Session lifecycle phases and their terminal/accepting predicates
// ABOUTME: Phases only move forward; Failed is reachable from any active phase

package conversation

// Phase is the stage of a research conversation.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseCollectingAnswers
	PhaseResearching
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollectingAnswers:
		return "collecting_answers"
	case PhaseResearching:
		return "researching"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}
