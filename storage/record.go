package storage

import (
	"math"
	"time"

	"github.com/YuminosukeSato/linfit/linear"
)

// ModelRecord is a trained model as persisted in the models table.
// Metrics that were undefined for the run are stored as NULL.
type ModelRecord struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       string    `json:"user_id" gorm:"index;size:64"`
	FileName     string    `json:"file_name"`
	XColumn      string    `json:"x_column"`
	YColumn      string    `json:"y_column"`
	Theta0       float64   `json:"theta0"`
	Theta1       float64   `json:"theta1"`
	Equation     string    `json:"equation"`
	Epochs       int       `json:"epochs"`
	LearningRate float64   `json:"learning_rate"`
	Tolerance    float64   `json:"tolerance"`
	Reason       string    `json:"termination_reason" gorm:"size:32"`
	R2           *float64  `json:"r2"`
	RMSE         *float64  `json:"rmse"`
	MAE          *float64  `json:"mae"`
	TestMSE      *float64  `json:"test_mse"`
	TestR2       *float64  `json:"test_r2"`
	TrainSize    int       `json:"train_size"`
	TestSize     int       `json:"test_size"`
	Codec        string    `json:"history_codec" gorm:"size:8"`
	History      []byte    `json:"-"`
	HistoryBytes int       `json:"history_bytes"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// TableName pins the table name independent of gorm's pluralisation.
func (ModelRecord) TableName() string { return "models" }

// Params returns the stored line.
func (m *ModelRecord) Params() linear.Params {
	return linear.Params{Theta0: m.Theta0, Theta1: m.Theta1}
}

// Predict implements model.Predictor.
func (m *ModelRecord) Predict(x float64) float64 {
	return m.Params().Predict(x)
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
