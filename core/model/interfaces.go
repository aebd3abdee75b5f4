// Package model defines the interfaces shared by fitted single-variable
// models and the helpers used to persist them.
package model

// Predictor maps one input to one prediction.
type Predictor interface {
	Predict(x float64) float64
}

// BatchPredictor predicts many inputs at once, in input order.
type BatchPredictor interface {
	Predictor
	PredictBatch(xs []float64) []float64
}

// PredictorFunc adapts an ordinary function to Predictor.
type PredictorFunc func(x float64) float64

// Predict calls f(x).
func (f PredictorFunc) Predict(x float64) float64 {
	return f(x)
}
