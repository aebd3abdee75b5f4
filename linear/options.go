package linear

import "math/rand/v2"

// randomInitRange は WithRandomInit の初期値の幅 [-r, r)
const randomInitRange = 0.01

// Option is a function that configures GradientDescent
type Option func(*GradientDescent)

// WithInitialParams sets the starting parameters (default: zero)
func WithInitialParams(p Params) Option {
	return func(gd *GradientDescent) {
		gd.params = p
	}
}

// WithRandomInit starts from small random parameters in [-0.01, 0.01)
// drawn from a source seeded with seed
func WithRandomInit(seed int64) Option {
	return func(gd *GradientDescent) {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))
		gd.params = Params{
			Theta0: (rng.Float64()*2 - 1) * randomInitRange,
			Theta1: (rng.Float64()*2 - 1) * randomInitRange,
		}
	}
}

// WithParallelThreshold sets the row count above which the gradient is
// computed in parallel
func WithParallelThreshold(n int) Option {
	return func(gd *GradientDescent) {
		gd.parallelThreshold = n
	}
}
