package dataset

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// Split is a disjoint train/test partition of a DataSet.
type Split struct {
	Train []Sample
	Test  []Sample
}

// SplitOption configures DataSet.Split.
type SplitOption func(*splitConfig)

type splitConfig struct {
	seed    *int64
	shuffle bool
}

// WithSeed makes the permutation deterministic: the same seed, data and
// ratio always produce the same partition.
func WithSeed(seed int64) SplitOption {
	return func(c *splitConfig) {
		c.seed = &seed
	}
}

// WithoutShuffle keeps insertion order: the first floor(n·ratio) samples
// train, the rest test.
func WithoutShuffle() SplitOption {
	return func(c *splitConfig) {
		c.shuffle = false
	}
}

// TrainSize returns floor(n·ratio), the size of the training side.
func TrainSize(n int, ratio float64) int {
	return int(math.Floor(float64(n) * ratio))
}

// Split partitions the samples into train and test sets.
//
// ratio must lie strictly inside (0, 1). The training side receives
// floor(n·ratio) samples; a partition leaving either side empty is an
// InsufficientDataError. Without WithSeed the permutation is drawn from a
// time-seeded source.
func (d *DataSet) Split(ratio float64, opts ...SplitOption) (Split, error) {
	cfg := splitConfig{shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !(ratio > 0 && ratio < 1) {
		return Split{}, errors.NewInvalidRatioError(ratio)
	}

	n := len(d.samples)
	nTrain := TrainSize(n, ratio)
	if nTrain < 1 || n-nTrain < 1 {
		return Split{}, errors.NewInsufficientDataError(n, ratio, nTrain, n-nTrain)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if cfg.shuffle {
		newRand(cfg.seed).Shuffle(n, func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
	}

	s := Split{
		Train: make([]Sample, 0, nTrain),
		Test:  make([]Sample, 0, n-nTrain),
	}
	for k, i := range idx {
		if k < nTrain {
			s.Train = append(s.Train, d.samples[i])
		} else {
			s.Test = append(s.Test, d.samples[i])
		}
	}
	return s, nil
}

func newRand(seed *int64) *rand.Rand {
	var s uint64
	if seed != nil {
		s = uint64(*seed)
	} else {
		s = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}
