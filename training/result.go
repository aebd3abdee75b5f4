package training

import (
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/linfit/core/model"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/metrics"
)

// Result is the immutable outcome of a finished run. It is produced
// exactly once, when the session reaches a terminal state.
type Result struct {
	SessionID string
	Params    linear.Params
	Equation  string

	// Train holds the final metrics on the training split, Test those on
	// the test split.
	Train metrics.Scores
	Test  metrics.Scores

	TotalEpochs int
	Reason      Reason
	State       State

	// Reference is the closed-form fit on the training split. When it
	// cannot be computed ReferenceErr explains why and Reference is zero.
	Reference    linear.ReferenceFit
	ReferenceErr error

	// Diverged is set when the run failed because the optimizer produced
	// a non-finite value; Params are then the last finite parameters.
	Diverged bool
	Err      error

	// CostHistory holds the cost of every completed epoch in order. Each
	// entry is measured before that epoch's update; FinalCost is the cost
	// at the final parameters, in the same space.
	CostHistory []float64
	FinalCost   float64

	TrainSize int
	TestSize  int
	XRange    [2]float64
	YRange    [2]float64
	Config    Config
	Duration  time.Duration
}

// Predict implements model.Predictor with the final parameters.
func (r Result) Predict(x float64) float64 {
	return r.Params.Predict(x)
}

type referenceJSON struct {
	Theta0   float64         `json:"theta0"`
	Theta1   float64         `json:"theta1"`
	R2       model.NullFloat `json:"r2"`
	RMSE     model.NullFloat `json:"rmse"`
	MAE      model.NullFloat `json:"mae"`
	Equation string          `json:"equation"`
}

// ResultJSON is the wire form of Result.
type ResultJSON struct {
	SessionID    string          `json:"session_id,omitempty"`
	FinalTheta0  float64         `json:"final_theta0"`
	FinalTheta1  float64         `json:"final_theta1"`
	Equation     string          `json:"equation"`
	FinalRMSE    model.NullFloat `json:"final_rmse"`
	FinalMAE     model.NullFloat `json:"final_mae"`
	FinalR2      model.NullFloat `json:"final_r2"`
	FinalCost    model.NullFloat `json:"final_cost"`
	TestMSE      model.NullFloat `json:"test_mse"`
	TestRMSE     model.NullFloat `json:"test_rmse"`
	TestMAE      model.NullFloat `json:"test_mae"`
	TestR2       model.NullFloat `json:"test_r2"`
	TotalEpochs  int             `json:"total_epochs"`
	Reason       Reason          `json:"termination_reason"`
	State        State           `json:"state"`
	ReferenceFit *referenceJSON  `json:"reference_fit"`
	ReferenceErr string          `json:"reference_error,omitempty"`
	Diverged     bool            `json:"diverged"`
	Error        string          `json:"error,omitempty"`
	TrainSize    int             `json:"train_size"`
	TestSize     int             `json:"test_size"`
	XRange       [2]float64      `json:"x_range"`
	YRange       [2]float64      `json:"y_range"`
	DurationMs   int64           `json:"duration_ms"`
}

// JSON converts the result to its wire form.
func (r Result) JSON() ResultJSON {
	out := ResultJSON{
		SessionID:   r.SessionID,
		FinalTheta0: r.Params.Theta0,
		FinalTheta1: r.Params.Theta1,
		Equation:    r.Equation,
		FinalRMSE:   model.NullFloat(r.Train.RMSE),
		FinalMAE:    model.NullFloat(r.Train.MAE),
		FinalR2:     model.NullFloat(r.Train.R2),
		FinalCost:   model.NullFloat(r.FinalCost),
		TestMSE:     model.NullFloat(r.Test.MSE),
		TestRMSE:    model.NullFloat(r.Test.RMSE),
		TestMAE:     model.NullFloat(r.Test.MAE),
		TestR2:      model.NullFloat(r.Test.R2),
		TotalEpochs: r.TotalEpochs,
		Reason:      r.Reason,
		State:       r.State,
		Diverged:    r.Diverged,
		TrainSize:   r.TrainSize,
		TestSize:    r.TestSize,
		XRange:      r.XRange,
		YRange:      r.YRange,
		DurationMs:  r.Duration.Milliseconds(),
	}
	if r.ReferenceErr != nil {
		out.ReferenceErr = r.ReferenceErr.Error()
	} else {
		out.ReferenceFit = &referenceJSON{
			Theta0:   r.Reference.Theta0,
			Theta1:   r.Reference.Theta1,
			R2:       model.NullFloat(r.Reference.R2),
			RMSE:     model.NullFloat(r.Reference.RMSE),
			MAE:      model.NullFloat(r.Reference.MAE),
			Equation: r.Reference.Equation(),
		}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.JSON())
}
