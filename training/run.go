package training

import (
	"context"
	"time"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/metrics"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
	"github.com/YuminosukeSato/linfit/preprocessing"
)

// run is the state owned exclusively by one session's training goroutine.
type run struct {
	cfg    Config
	split  dataset.Split
	gd     *linear.GradientDescent
	policy *linear.StopPolicy

	// non-nil only when cfg.Normalize is set
	scaleX, scaleY *preprocessing.Scaler1D

	xRange, yRange [2]float64
}

func newRun(ds *dataset.DataSet, cfg Config) (*run, error) {
	var splitOpts []dataset.SplitOption
	if cfg.Seed != nil {
		splitOpts = append(splitOpts, dataset.WithSeed(*cfg.Seed))
	}
	split, err := ds.Split(cfg.TrainRatio, splitOpts...)
	if err != nil {
		return nil, err
	}

	r := &run{
		cfg:    cfg,
		split:  split,
		policy: linear.NewStopPolicy(cfg.MaxEpochs, cfg.Tolerance, cfg.EarlyStopping, cfg.Patience),
	}
	r.xRange[0], r.xRange[1] = ds.XRange()
	r.yRange[0], r.yRange[1] = ds.YRange()

	train := split.Train
	if cfg.Normalize {
		if train, err = r.normalize(train); err != nil {
			return nil, err
		}
	}

	r.gd, err = linear.NewGradientDescent(train, cfg.LearningRate)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// normalize fits z-score scalers on the training split and returns the
// standardized training samples.
func (r *run) normalize(train []dataset.Sample) ([]dataset.Sample, error) {
	xs := make([]float64, len(train))
	ys := make([]float64, len(train))
	for i, s := range train {
		xs[i], ys[i] = s.X, s.Y
	}
	r.scaleX, r.scaleY = preprocessing.NewScaler1D(), preprocessing.NewScaler1D()
	zx, err := r.scaleX.FitTransform(xs)
	if err != nil {
		return nil, err
	}
	zy, err := r.scaleY.FitTransform(ys)
	if err != nil {
		return nil, err
	}
	out := make([]dataset.Sample, len(train))
	for i := range train {
		out[i] = dataset.Sample{X: zx[i], Y: zy[i]}
	}
	return out, nil
}

// params returns the optimizer's current parameters in the original scale.
func (r *run) params() linear.Params {
	p := r.gd.Params()
	if r.scaleX == nil {
		return p
	}
	t0, t1 := preprocessing.UnscaleLine(p.Theta0, p.Theta1, r.scaleX, r.scaleY)
	return linear.Params{Theta0: t0, Theta1: t1}
}

func (s *Session) loop(ctx context.Context, r *run) {
	var (
		reason = ReasonStopped
		runErr error
	)

	for {
		if !s.awaitRunnable(ctx) {
			break
		}

		var step linear.EpochStep
		err := errors.SafeExecute("training.epoch", func() error {
			var stepErr error
			step, stepErr = r.gd.Step()
			return stepErr
		})
		if err != nil {
			runErr = err
			reason = ReasonFailed
			if errors.Is(err, errors.ErrDiverged) {
				reason = ReasonDiverged
			}
			break
		}

		p := r.params()
		sc, err := metrics.Score(p, r.split.Test)
		if err != nil {
			runErr, reason = err, ReasonFailed
			break
		}
		ev := newEpochState(step.Epoch, step.Cost, p, sc)
		s.publish(ev)
		if !s.deliver(ctx, ev) {
			break
		}

		decision := r.policy.Observe(step.Epoch, step.Cost)
		if decision == linear.MaxEpochsReached {
			reason = ReasonMaxEpochs
			break
		}
		if decision == linear.Converged {
			reason = ReasonConverged
			break
		}
		if r.cfg.EpochDelay > 0 && !s.sleep(ctx, r.cfg.EpochDelay) {
			break
		}
	}

	s.finish(r, reason, runErr)
}

// awaitRunnable blocks while the session is Paused and reports whether
// another epoch may run.
func (s *Session) awaitRunnable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == Paused && ctx.Err() == nil {
		s.cond.Wait()
	}
	return s.state == Running && ctx.Err() == nil
}

func (s *Session) publish(ev EpochState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = ev
	s.hasLatest = true
	s.costs = append(s.costs, ev.Cost)
}

// deliver hands ev to every observer and, if subscribed, to the Events
// channel. It returns false when the session is stopped or ctx ends while
// the channel is full.
func (s *Session) deliver(ctx context.Context, ev EpochState) bool {
	for _, o := range s.observers {
		o(ev)
	}

	s.mu.Lock()
	subscribed := s.subscribed
	s.mu.Unlock()
	if !subscribed {
		return true
	}

	select {
	case s.events <- ev:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// sleep waits d unless the session is stopped or ctx ends first.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// finish computes the final metrics and the reference fit, publishes the
// Result and moves the session to its terminal state.
func (s *Session) finish(r *run, reason Reason, runErr error) {
	p := r.params()

	res := Result{
		SessionID:   s.id,
		Params:      p,
		Equation:    p.Equation(),
		TotalEpochs: r.gd.Epoch(),
		FinalCost:   r.gd.Cost(r.gd.Params()),
		Reason:      reason,
		Diverged:    errors.Is(runErr, errors.ErrDiverged),
		Err:         runErr,
		TrainSize:   len(r.split.Train),
		TestSize:    len(r.split.Test),
		XRange:      r.xRange,
		YRange:      r.yRange,
		Config:      r.cfg,
	}

	var err error
	if res.Train, err = metrics.Evaluate(p, r.split.Train); err != nil && res.Err == nil {
		res.Err = err
	}
	if res.Test, err = metrics.Evaluate(p, r.split.Test); err != nil && res.Err == nil {
		res.Err = err
	}
	res.Reference, res.ReferenceErr = linear.FitOLS(r.split.Train)

	if reason == ReasonMaxEpochs && r.cfg.EarlyStopping {
		errors.Warn(errors.NewConvergenceWarning("GradientDescent", res.TotalEpochs, r.policy.LastDelta(), r.cfg.Tolerance))
	}

	s.mu.Lock()
	switch {
	case runErr != nil:
		s.setState(Failed)
	case s.state == Stopped:
		// Stop was requested before the run reached its own end.
		res.Reason = ReasonStopped
	case reason == ReasonMaxEpochs || reason == ReasonConverged:
		s.setState(Completed)
	case reason == ReasonStopped:
		s.setState(Stopped)
	default:
		s.setState(Failed)
	}
	res.State = s.state
	res.CostHistory = append([]float64(nil), s.costs...)
	res.Duration = time.Since(s.startedAt)
	s.result = &res
	s.cond.Broadcast()
	s.mu.Unlock()

	close(s.events)
	close(s.done)

	fields := []any{
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, "gradient_descent",
		log.ReasonKey, string(res.Reason),
		log.EpochKey, res.TotalEpochs,
		log.Theta0Key, p.Theta0,
		log.Theta1Key, p.Theta1,
		log.RMSEKey, res.Test.RMSE,
		log.MAEKey, res.Test.MAE,
		log.R2ScoreKey, res.Test.R2,
		log.CostKey, res.FinalCost,
		log.CostDeltaKey, r.policy.LastDelta(),
		log.DurationMsKey, res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		s.logger.Error("training failed", append([]any{res.Err}, fields...)...)
		return
	}
	s.logger.Info("training finished", fields...)
}
