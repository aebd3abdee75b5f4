package training

import (
	"github.com/YuminosukeSato/linfit/core/model"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/metrics"
	"github.com/YuminosukeSato/linfit/pkg/log"
)

// EpochState is the progress event emitted after every completed epoch.
// RMSE, MAE and R2 are measured on the test split with the post-update
// parameters; R2 is NaN (null in JSON) when the test targets are constant.
type EpochState struct {
	Epoch  int             `json:"epoch"`
	Cost   float64         `json:"cost"`
	Theta0 float64         `json:"theta0"`
	Theta1 float64         `json:"theta1"`
	RMSE   model.NullFloat `json:"rmse"`
	MAE    model.NullFloat `json:"mae"`
	R2     model.NullFloat `json:"r2"`
}

// Params returns the parameters after this epoch.
func (e EpochState) Params() linear.Params {
	return linear.Params{Theta0: e.Theta0, Theta1: e.Theta1}
}

func newEpochState(epoch int, cost float64, p linear.Params, sc metrics.Scores) EpochState {
	return EpochState{
		Epoch:  epoch,
		Cost:   cost,
		Theta0: p.Theta0,
		Theta1: p.Theta1,
		RMSE:   model.NullFloat(sc.RMSE),
		MAE:    model.NullFloat(sc.MAE),
		R2:     model.NullFloat(sc.R2),
	}
}

// Observer receives every EpochState, in epoch order, on the session's
// training goroutine. It must not block for long: the next epoch waits
// for it. Calling Pause or Stop from an Observer is allowed.
type Observer func(EpochState)

// RecordHistory appends every event to *history.
func RecordHistory(history *[]EpochState) Observer {
	return func(e EpochState) {
		*history = append(*history, e)
	}
}

// LogProgress logs every period-th epoch at debug level.
func LogProgress(logger log.Logger, period int) Observer {
	if period < 1 {
		period = 1
	}
	return func(e EpochState) {
		if e.Epoch%period != 0 {
			return
		}
		logger.Debug("epoch completed",
			log.EpochKey, e.Epoch,
			log.CostKey, e.Cost,
			log.Theta0Key, e.Theta0,
			log.Theta1Key, e.Theta1,
			log.RMSEKey, float64(e.RMSE),
		)
	}
}
