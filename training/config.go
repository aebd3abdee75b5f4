package training

import (
	"math"
	"time"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// Config holds the hyperparameters of one training run.
type Config struct {
	LearningRate  float64 `json:"learning_rate"`
	MaxEpochs     int     `json:"max_epochs"`
	Tolerance     float64 `json:"tolerance"`
	EarlyStopping bool    `json:"early_stopping"`
	TrainRatio    float64 `json:"train_ratio"`

	// Seed makes the train/test split reproducible. nil draws a fresh
	// permutation on every Start.
	Seed *int64 `json:"seed,omitempty"`

	// Patience is the number of consecutive sub-tolerance epochs required
	// before early stopping fires. 0 behaves as 1.
	Patience int `json:"patience,omitempty"`

	// Normalize trains on z-scored train-split data. Reported parameters
	// and metrics stay in the original scale; the cost does not.
	Normalize bool `json:"normalize,omitempty"`

	// EpochDelay pauses between epochs so that progress can be watched.
	EpochDelay time.Duration `json:"epoch_delay,omitempty"`
}

// DefaultConfig returns the configuration used when the caller has no
// preference.
func DefaultConfig() Config {
	return Config{
		LearningRate:  0.01,
		MaxEpochs:     1000,
		Tolerance:     1e-6,
		EarlyStopping: true,
		TrainRatio:    0.8,
		Patience:      1,
	}
}

// Validate rejects configurations that cannot start a run.
func (c Config) Validate() error {
	switch {
	case !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0):
		return errors.NewInvalidConfigError("learning_rate", "must be a positive finite number", c.LearningRate)
	case c.MaxEpochs <= 0:
		return errors.NewInvalidConfigError("max_epochs", "must be positive", c.MaxEpochs)
	case !(c.Tolerance >= 0) || math.IsInf(c.Tolerance, 0):
		return errors.NewInvalidConfigError("tolerance", "must be a finite number >= 0", c.Tolerance)
	case !(c.TrainRatio > 0 && c.TrainRatio < 1):
		return errors.NewInvalidConfigError("train_ratio", "must lie in (0, 1)", c.TrainRatio)
	case c.Patience < 0:
		return errors.NewInvalidConfigError("patience", "must be >= 0", c.Patience)
	case c.EpochDelay < 0:
		return errors.NewInvalidConfigError("epoch_delay", "must be >= 0", c.EpochDelay)
	}
	return nil
}
