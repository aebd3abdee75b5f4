// Package log defines standard attribute keys for training operations.
//
// The keys follow a hierarchical naming convention (e.g. "training.epoch",
// "data.samples") so that logs from the CLI, the HTTP server and library
// callers can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model, e.g. "GradientDescent", "OLS".
	ModelNameKey = "model.name"

	// ModelIDKey identifies a persisted model.
	ModelIDKey = "model.id"

	// SessionIDKey identifies a training session.
	SessionIDKey = "session.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	ComponentKey = "ml.component"

	// StateKey records a session state, StateFromKey the state it left.
	StateKey     = "session.state"
	StateFromKey = "session.state_from"
)

// Data Shape and Characteristics
const (
	SamplesKey      = "data.samples"
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
	DroppedRowsKey  = "data.dropped_rows"
	XColumnKey      = "data.x_column"
	YColumnKey      = "data.y_column"
	BatchSizeKey    = "data.batch_size"
)

// Training progress and metrics
const (
	EpochKey        = "training.epoch"
	MaxEpochsKey    = "training.max_epochs"
	ReasonKey       = "training.reason"
	CostKey         = "metrics.cost"
	CostDeltaKey    = "metrics.cost_delta"
	R2ScoreKey      = "metrics.r2_score"
	RMSEKey         = "metrics.rmse"
	MAEKey          = "metrics.mae"
	Theta0Key       = "model.theta0"
	Theta1Key       = "model.theta1"
	DurationMsKey   = "perf.duration_ms"
	CompressedKey   = "perf.compressed_bytes"
	UncompressedKey = "perf.uncompressed_bytes"
	CompressionKey  = "perf.compression_ratio"
)

// Hyperparameters and Configuration
const (
	LearningRateKey  = "hyperparams.learning_rate"
	ToleranceKey     = "hyperparams.tolerance"
	TrainRatioKey    = "hyperparams.train_ratio"
	EarlyStoppingKey = "hyperparams.early_stopping"
	RandomSeedKey    = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationLoad    = "load"
)
