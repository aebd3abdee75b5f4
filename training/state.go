package training

import "github.com/YuminosukeSato/linfit/pkg/errors"

// State is the lifecycle state of a Session.
//
//	Idle → Running → {Paused, Completed, Stopped, Failed}
//	Paused → Running | Stopped
//
// Completed, Stopped and Failed are terminal.
type State int

const (
	Idle State = iota
	Running
	Paused
	Completed
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Stopped || s == Failed
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Failed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return errors.NewValidationError("state", "unknown session state", string(b))
}

// Reason is why a run terminated.
type Reason string

const (
	ReasonMaxEpochs Reason = "max_epochs_reached"
	ReasonConverged Reason = "converged"
	ReasonStopped   Reason = "stopped"
	ReasonDiverged  Reason = "training_diverged"
	ReasonFailed    Reason = "failed"
)
