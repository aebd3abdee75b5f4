package training

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/metrics"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
)

func init() {
	// ConvergenceWarning などを標準ロガーに出さない
	errors.SetWarningHandler(nil)
}

// noisyLine returns y = 2x + 1 with a small deterministic perturbation.
func noisyLine(t *testing.T, n int) *dataset.DataSet {
	t.Helper()
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = 5 * float64(i) / float64(n-1)
		ys[i] = 2*xs[i] + 1 + 0.1*math.Sin(float64(i)*1.7)
	}
	ds, err := dataset.FromXY(xs, ys)
	require.NoError(t, err)
	return ds
}

func seeded(cfg Config, seed int64) Config {
	cfg.Seed = &seed
	return cfg
}

func waitResult(t *testing.T, s *Session) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, _ := s.Wait(ctx)
	require.NoError(t, ctx.Err(), "session did not finish in time")
	return res
}

func TestSessionTrainsToHighR2(t *testing.T) {
	s := NewSession(noisyLine(t, 50))
	cfg := seeded(Config{LearningRate: 0.01, MaxEpochs: 1000, Tolerance: 0, TrainRatio: 0.8}, 1)
	require.NoError(t, s.Start(context.Background(), cfg))

	res := waitResult(t, s)
	assert.Equal(t, Completed, s.State())
	assert.Equal(t, ReasonMaxEpochs, res.Reason)
	assert.Equal(t, 1000, res.TotalEpochs)
	assert.Greater(t, res.Train.R2, 0.95)
	assert.Greater(t, res.Test.R2, 0.95)
	assert.Equal(t, 40, res.TrainSize)
	assert.Equal(t, 10, res.TestSize)
	assert.Len(t, res.CostHistory, 1000)
	assert.Equal(t, res.Params.Equation(), res.Equation)
	assert.Greater(t, res.FinalCost, 0.0)
	assert.LessOrEqual(t, res.FinalCost, res.CostHistory[999])

	require.NoError(t, res.ReferenceErr)
	assert.InDelta(t, 2.0, res.Reference.Theta1, 0.05)
	assert.InDelta(t, res.Reference.Theta1, res.Params.Theta1, 0.05)
}

func TestSessionEarlyStopping(t *testing.T) {
	s := NewSession(noisyLine(t, 50))
	cfg := seeded(Config{LearningRate: 0.01, MaxEpochs: 1000, Tolerance: 0.1, EarlyStopping: true, TrainRatio: 0.8}, 2)
	require.NoError(t, s.Start(context.Background(), cfg))

	res := waitResult(t, s)
	assert.Equal(t, ReasonConverged, res.Reason)
	assert.Less(t, res.TotalEpochs, cfg.MaxEpochs)
	assert.Equal(t, Completed, res.State)

	h := res.CostHistory
	require.GreaterOrEqual(t, len(h), 2)
	assert.Less(t, math.Abs(h[len(h)-2]-h[len(h)-1]), 0.1)
}

func TestSessionPatience(t *testing.T) {
	run := func(patience int) int {
		s := NewSession(noisyLine(t, 50))
		cfg := seeded(Config{LearningRate: 0.01, MaxEpochs: 1000, Tolerance: 0.1, EarlyStopping: true, TrainRatio: 0.8, Patience: patience}, 2)
		require.NoError(t, s.Start(context.Background(), cfg))
		return waitResult(t, s).TotalEpochs
	}
	assert.Equal(t, run(1)+14, run(15))
}

func TestSessionStopAfterFiveEpochs(t *testing.T) {
	ds := noisyLine(t, 50)
	var s *Session
	s = NewSession(ds, WithObserver(func(e EpochState) {
		if e.Epoch == 5 {
			assert.NoError(t, s.Stop())
		}
	}))
	cfg := seeded(Config{LearningRate: 0.01, MaxEpochs: 100, TrainRatio: 0.8}, 3)
	require.NoError(t, s.Start(context.Background(), cfg))

	res := waitResult(t, s)
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, ReasonStopped, res.Reason)
	assert.Equal(t, 5, res.TotalEpochs)

	// Final metrics are those of the parameters after epoch 5.
	split, err := ds.Split(0.8, dataset.WithSeed(3))
	require.NoError(t, err)
	want, err := metrics.Evaluate(res.Params, split.Train)
	require.NoError(t, err)
	assert.Equal(t, want, res.Train)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, latest.Params(), res.Params)
	require.NoError(t, res.ReferenceErr)
}

func TestSessionPauseResume(t *testing.T) {
	var s *Session
	s = NewSession(noisyLine(t, 20), WithObserver(func(e EpochState) {
		if e.Epoch == 3 {
			assert.NoError(t, s.Pause())
		}
	}))
	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 0.01, MaxEpochs: 10, TrainRatio: 0.5}))

	require.Eventually(t, func() bool { return s.State() == Paused }, 5*time.Second, time.Millisecond)
	e, _ := s.Latest()
	assert.Equal(t, 3, e.Epoch)

	err := s.Pause()
	assert.True(t, errors.Is(err, errors.ErrIllegalTransition), "pause while paused must fail")

	time.Sleep(30 * time.Millisecond)
	e, _ = s.Latest()
	assert.Equal(t, 3, e.Epoch, "no epoch may run while paused")

	require.NoError(t, s.Resume())
	res := waitResult(t, s)
	assert.Equal(t, 10, res.TotalEpochs)
	assert.Equal(t, Completed, res.State)
}

func TestSessionStopWhilePaused(t *testing.T) {
	var s *Session
	s = NewSession(noisyLine(t, 20), WithObserver(func(e EpochState) {
		if e.Epoch == 2 {
			assert.NoError(t, s.Pause())
		}
	}))
	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 0.01, MaxEpochs: 100, TrainRatio: 0.5}))

	require.Eventually(t, func() bool { return s.State() == Paused }, 5*time.Second, time.Millisecond)
	require.NoError(t, s.Stop())

	res := waitResult(t, s)
	assert.Equal(t, ReasonStopped, res.Reason)
	assert.Equal(t, 2, res.TotalEpochs)
}

func TestSessionIllegalTransitions(t *testing.T) {
	s := NewSession(noisyLine(t, 10))

	for name, op := range map[string]func() error{
		"pause": s.Pause, "resume": s.Resume, "stop": s.Stop,
	} {
		err := op()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.ErrIllegalTransition), name)
		var ie *errors.IllegalStateTransitionError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "idle", ie.From)
	}
	_, err := s.Wait(context.Background())
	assert.True(t, errors.Is(err, errors.ErrIllegalTransition))

	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 0.01, MaxEpochs: 3, TrainRatio: 0.5}))
	err = s.Start(context.Background(), DefaultConfig())
	assert.True(t, errors.Is(err, errors.ErrIllegalTransition), "start twice")

	waitResult(t, s)
	for _, op := range []func() error{s.Pause, s.Resume, s.Stop} {
		assert.True(t, errors.Is(op(), errors.ErrIllegalTransition))
	}
}

func TestSessionStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		ds      *dataset.DataSet
		cfg     Config
		wantErr error
	}{
		{"zero learning rate", noisyLine(t, 10), Config{LearningRate: 0, MaxEpochs: 10, TrainRatio: 0.5}, errors.ErrInvalidConfig},
		{"zero epochs", noisyLine(t, 10), Config{LearningRate: 0.1, MaxEpochs: 0, TrainRatio: 0.5}, errors.ErrInvalidConfig},
		{"negative tolerance", noisyLine(t, 10), Config{LearningRate: 0.1, MaxEpochs: 10, Tolerance: -1, TrainRatio: 0.5}, errors.ErrInvalidConfig},
		{"ratio one", noisyLine(t, 10), Config{LearningRate: 0.1, MaxEpochs: 10, TrainRatio: 1}, errors.ErrInvalidConfig},
		{"negative delay", noisyLine(t, 10), Config{LearningRate: 0.1, MaxEpochs: 10, TrainRatio: 0.5, EpochDelay: -time.Second}, errors.ErrInvalidConfig},
		{"empty test side", noisyLine(t, 2), Config{LearningRate: 0.1, MaxEpochs: 10, TrainRatio: 0.3}, errors.ErrInsufficientData},
		{"nil data", nil, DefaultConfig(), errors.ErrEmptyDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(tt.ds)
			err := s.Start(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, Idle, s.State())
			_, ok := s.Latest()
			assert.False(t, ok, "no epoch may run after a failed start")
		})
	}
}

func TestSessionEventsOrdered(t *testing.T) {
	var recorded []EpochState
	s := NewSession(noisyLine(t, 30), WithEventBuffer(0), WithObserver(RecordHistory(&recorded)))
	events := s.Events()
	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 0.01, MaxEpochs: 50, TrainRatio: 0.8}))

	var got []EpochState
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 50)
	for i, ev := range got {
		assert.Equal(t, i+1, ev.Epoch)
	}

	res := waitResult(t, s)
	assert.Equal(t, recorded, got)
	for i, ev := range got {
		assert.Equal(t, res.CostHistory[i], ev.Cost)
	}
	assert.Equal(t, got[len(got)-1].Params(), res.Params)
}

func TestSessionDivergence(t *testing.T) {
	s := NewSession(noisyLine(t, 30))
	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 50, MaxEpochs: 10_000, TrainRatio: 0.8}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDiverged))

	assert.Equal(t, Failed, s.State())
	assert.Equal(t, ReasonDiverged, res.Reason)
	assert.True(t, res.Diverged)
	assert.True(t, res.Params.Finite(), "last finite parameters are kept")
	assert.Less(t, res.TotalEpochs, 10_000)
	assert.Len(t, res.CostHistory, res.TotalEpochs)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"termination_reason":"training_diverged"`)
}

func TestSessionContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(noisyLine(t, 20))
	cfg := Config{LearningRate: 0.01, MaxEpochs: 1000, TrainRatio: 0.5, EpochDelay: 5 * time.Millisecond}
	require.NoError(t, s.Start(ctx, cfg))

	require.Eventually(t, func() bool {
		_, ok := s.Latest()
		return ok
	}, 5*time.Second, time.Millisecond)
	cancel()

	res := waitResult(t, s)
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, ReasonStopped, res.Reason)
	assert.Less(t, res.TotalEpochs, 1000)
}

func TestSessionStopWithStalledSubscriber(t *testing.T) {
	s := NewSession(noisyLine(t, 20), WithEventBuffer(1))
	_ = s.Events() // subscribed but never drained
	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 0.01, MaxEpochs: 1000, TrainRatio: 0.5}))

	require.Eventually(t, func() bool {
		_, ok := s.Latest()
		return ok
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, s.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, ReasonStopped, res.Reason)
	assert.Less(t, res.TotalEpochs, 1000)
}

func TestFinishDivergenceWinsOverStop(t *testing.T) {
	ds := noisyLine(t, 20)
	s := NewSession(ds)
	cfg := seeded(Config{LearningRate: 0.01, MaxEpochs: 10, TrainRatio: 0.5}, 3)
	r, err := newRun(ds, cfg)
	require.NoError(t, err)

	// Stop が発散したエポックの途中で届いた状態を再現する
	s.mu.Lock()
	s.state = Stopped
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.finish(r, ReasonDiverged, errors.NewNumericalInstabilityError("gradient", []float64{math.Inf(1)}, 1))

	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, Failed, s.State())
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, ReasonDiverged, res.Reason)
	assert.True(t, res.Diverged)
}

func TestSessionNormalize(t *testing.T) {
	xs := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 3 + 2*x
	}
	ds, err := dataset.FromXY(xs, ys)
	require.NoError(t, err)

	s := NewSession(ds)
	cfg := seeded(Config{LearningRate: 0.1, MaxEpochs: 2000, TrainRatio: 0.8, Normalize: true}, 4)
	require.NoError(t, s.Start(context.Background(), cfg))

	res := waitResult(t, s)
	assert.InDelta(t, 3.0, res.Params.Theta0, 1e-6)
	assert.InDelta(t, 2.0, res.Params.Theta1, 1e-6)
	assert.InDelta(t, 1.0, res.Test.R2, 1e-9)
	assert.InDelta(t, 0.0, res.CostHistory[len(res.CostHistory)-1], 1e-12)
}

func TestSessionLogs(t *testing.T) {
	logger := log.NewTestLogger(log.LevelDebug)
	s := NewSession(noisyLine(t, 20), WithLogger(logger), WithLogEvery(2), WithID("fixed-id"))
	require.NoError(t, s.Start(context.Background(), Config{LearningRate: 0.01, MaxEpochs: 4, TrainRatio: 0.5}))
	waitResult(t, s)

	assert.Equal(t, "fixed-id", s.ID())
	assert.True(t, logger.ContainsMessage("training started"))
	assert.True(t, logger.ContainsMessage("training finished"))
	assert.True(t, logger.ContainsField(log.SessionIDKey, "fixed-id"))
	assert.True(t, logger.ContainsField(log.EpochKey, 4.0))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	progress := 0
	for _, e := range entries {
		if e["message"] == "epoch completed" {
			progress++
		}
	}
	assert.Equal(t, 2, progress)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.LearningRate = -1 },
		func(c *Config) { c.LearningRate = math.NaN() },
		func(c *Config) { c.MaxEpochs = -5 },
		func(c *Config) { c.Tolerance = math.Inf(1) },
		func(c *Config) { c.TrainRatio = 0 },
		func(c *Config) { c.TrainRatio = math.NaN() },
		func(c *Config) { c.Patience = -1 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		err := c.Validate()
		var ce *errors.InvalidConfigError
		assert.True(t, errors.As(err, &ce), "case %d: %v", i, err)
	}
}

func TestResultJSON(t *testing.T) {
	res := Result{
		Params:      linear.Params{Theta0: 1, Theta1: 2},
		Equation:    "y = 1.0000 + 2.0000 * x",
		Train:       metrics.Scores{R2: 0.9, RMSE: 0.1, MAE: 0.05, MSE: 0.01},
		Test:        metrics.Scores{R2: math.NaN(), RMSE: 0.2, MAE: 0.1, MSE: 0.04},
		TotalEpochs: 5,
		FinalCost:   0.25,
		Reason:      ReasonStopped,
		State:       Stopped,
		Reference:   linear.ReferenceFit{Theta0: 1, Theta1: 2, R2: 1},
	}

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, 1.0, m["final_theta0"])
	assert.Equal(t, 2.0, m["final_theta1"])
	assert.Equal(t, 0.9, m["final_r2"])
	assert.Nil(t, m["test_r2"], "NaN must encode as null")
	assert.Equal(t, 0.04, m["test_mse"])
	assert.Equal(t, 5.0, m["total_epochs"])
	assert.Equal(t, 0.25, m["final_cost"])
	assert.Equal(t, "stopped", m["termination_reason"])
	assert.Equal(t, "stopped", m["state"])

	ref, ok := m["reference_fit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, ref["r2"])

	res.ReferenceErr = errors.NewDegenerateInputError("FitOLS", "x has zero variance")
	b, err = json.Marshal(res)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `"reference_fit":null`))
	assert.True(t, strings.Contains(string(b), "zero variance"))
}

func TestEpochStateJSON(t *testing.T) {
	b, err := json.Marshal(EpochState{Epoch: 1, Cost: 2, Theta0: 0.5, Theta1: 1, RMSE: 1, MAE: 1, R2: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"epoch":1,"cost":2,"theta0":0.5,"theta1":1,"rmse":1,"mae":1,"r2":0}`, string(b))
}
