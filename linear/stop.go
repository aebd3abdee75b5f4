package linear

import "math"

// Decision is the outcome of StopPolicy.Observe.
type Decision int

const (
	// Continue means another epoch should run.
	Continue Decision = iota
	// MaxEpochsReached means the epoch budget is exhausted.
	MaxEpochsReached
	// Converged means the cost change stayed below tolerance for Patience epochs.
	Converged
)

func (d Decision) String() string {
	switch d {
	case MaxEpochsReached:
		return "max_epochs_reached"
	case Converged:
		return "converged"
	default:
		return "continue"
	}
}

// StopPolicy decides after each epoch whether training terminates.
//
// The epoch budget is checked first, so a run whose last allowed epoch
// also converged reports MaxEpochsReached.
type StopPolicy struct {
	MaxEpochs     int
	Tolerance     float64
	EarlyStopping bool
	// Patience is the number of consecutive epochs with |Δcost| < Tolerance
	// required to stop. Values below 1 behave as 1.
	Patience int

	prevCost  float64
	lastDelta float64
	stable    int
	started   bool
}

// NewStopPolicy returns a policy with the previous cost set to +Inf.
func NewStopPolicy(maxEpochs int, tolerance float64, earlyStopping bool, patience int) *StopPolicy {
	return &StopPolicy{
		MaxEpochs:     maxEpochs,
		Tolerance:     tolerance,
		EarlyStopping: earlyStopping,
		Patience:      patience,
	}
}

// Observe records the cost of a completed epoch and returns the decision.
func (p *StopPolicy) Observe(epoch int, cost float64) Decision {
	if !p.started {
		p.prevCost = math.Inf(1)
		p.started = true
	}
	p.lastDelta = math.Abs(p.prevCost - cost)
	p.prevCost = cost

	if p.lastDelta < p.Tolerance {
		p.stable++
	} else {
		p.stable = 0
	}

	if epoch >= p.MaxEpochs {
		return MaxEpochsReached
	}
	patience := p.Patience
	if patience < 1 {
		patience = 1
	}
	if p.EarlyStopping && p.stable >= patience {
		return Converged
	}
	return Continue
}

// LastDelta returns |prevCost − cost| from the most recent Observe
// (+Inf after the first epoch).
func (p *StopPolicy) LastDelta() float64 {
	return p.lastDelta
}
