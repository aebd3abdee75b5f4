// Package training drives a gradient-descent run over a DataSet as a
// pausable, stoppable session that pushes one progress event per epoch.
package training

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
)

// LogEvery is the default epoch period of the session's debug progress log.
const LogEvery = 100

// DefaultEventBuffer is the default capacity of the Events channel.
const DefaultEventBuffer = 64

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithObserver registers an observer that receives every EpochState.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// WithLogger sets the logger (default: log.GetLogger()).
func WithLogger(l log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) SessionOption {
	return func(s *Session) {
		if n >= 0 {
			s.bufferSize = n
		}
	}
}

// WithLogEvery sets how often per-epoch progress is logged at debug level.
func WithLogEvery(n int) SessionOption {
	return func(s *Session) {
		s.logEvery = n
	}
}

// WithID overrides the generated session id.
func WithID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// Session runs one training run over a DataSet.
//
// All methods are safe for concurrent use. The run itself executes on a
// goroutine started by Start; pause and stop requests are honoured at the
// next epoch boundary, after that epoch's event has been delivered.
type Session struct {
	id         string
	ds         *dataset.DataSet
	logger     log.Logger
	observers  []Observer
	bufferSize int
	logEvery   int

	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	cfg        Config
	latest     EpochState
	hasLatest  bool
	costs      []float64
	result     *Result
	startedAt  time.Time
	subscribed bool

	events chan EpochState
	stopCh chan struct{}
	done   chan struct{}
}

// NewSession creates an Idle session over ds.
func NewSession(ds *dataset.DataSet, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.NewString(),
		ds:         ds,
		bufferSize: DefaultEventBuffer,
		logEvery:   LogEvery,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLogger()
	}
	s.logger = s.logger.With(log.SessionIDKey, s.id, log.ComponentKey, "training")
	s.cond = sync.NewCond(&s.mu)
	s.events = make(chan EpochState, s.bufferSize)
	if s.logEvery > 0 {
		s.observers = append(s.observers, LogProgress(s.logger, s.logEvery))
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// DataSet returns the data the session trains on.
func (s *Session) DataSet() *dataset.DataSet {
	return s.ds
}

// State returns the current state. Stop moves the state to Stopped
// immediately; the Result becomes available once Done is closed.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the configuration passed to Start.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Latest returns the most recent EpochState, if any epoch has completed.
func (s *Session) Latest() (EpochState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// CostHistory returns the cost of every completed epoch so far.
func (s *Session) CostHistory() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.costs))
	copy(out, s.costs)
	return out
}

// Events returns a channel that receives every EpochState in epoch order
// and is closed when the run finishes. Subscribe before Start to see
// every epoch. Once subscribed the run blocks until each event is
// received, so the channel must be drained.
func (s *Session) Events() <-chan EpochState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = true
	return s.events
}

// Done is closed when the session reaches a terminal state and its
// Result is available.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the final result without blocking.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Wait blocks until the run finishes or ctx is done. A failed run returns
// its Result together with the error that failed it.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	if st := s.State(); st == Idle {
		return Result{}, errors.NewIllegalStateTransitionError("wait on", st.String())
	}
	select {
	case <-s.done:
		res, _ := s.Result()
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Start validates cfg, splits the data, initializes the optimizer and
// launches the run. Configuration and data errors are returned here,
// before any epoch runs, and leave the session Idle.
//
// Cancelling ctx has the same effect as Stop.
func (s *Session) Start(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return errors.NewIllegalStateTransitionError("start", s.state.String())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.ds == nil {
		return errors.NewEmptyDatasetError(0, dataset.MinSamples)
	}

	r, err := newRun(s.ds, cfg)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.state = Running
	s.startedAt = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	stopWake := context.AfterFunc(runCtx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})

	startFields := []any{
		log.LearningRateKey, cfg.LearningRate,
		log.MaxEpochsKey, cfg.MaxEpochs,
		log.ToleranceKey, cfg.Tolerance,
		log.EarlyStoppingKey, cfg.EarlyStopping,
		log.TrainRatioKey, cfg.TrainRatio,
		log.TrainSamplesKey, len(r.split.Train),
		log.TestSamplesKey, len(r.split.Test),
	}
	if cfg.Seed != nil {
		startFields = append(startFields, log.RandomSeedKey, *cfg.Seed)
	}
	s.logger.Info("training started", startFields...)

	go func() {
		defer cancel()
		defer stopWake()
		s.loop(runCtx, r)
	}()
	return nil
}

// Pause suspends a Running session at the next epoch boundary.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return errors.NewIllegalStateTransitionError("pause", s.state.String())
	}
	s.setState(Paused)
	return nil
}

// Resume continues a Paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return errors.NewIllegalStateTransitionError("resume", s.state.String())
	}
	s.setState(Running)
	s.cond.Broadcast()
	return nil
}

// Stop ends a Running or Paused session. The run finalizes with the
// parameters of the last completed epoch.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running && s.state != Paused {
		return errors.NewIllegalStateTransitionError("stop", s.state.String())
	}
	s.setState(Stopped)
	close(s.stopCh)
	s.cond.Broadcast()
	return nil
}

// setState must be called with s.mu held.
func (s *Session) setState(to State) {
	s.logger.Info("session state changed", log.StateFromKey, s.state.String(), log.StateKey, to.String())
	s.state = to
}
