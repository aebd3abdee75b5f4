package linear

import (
	"math"

	"github.com/YuminosukeSato/linfit/core/parallel"
	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// EpochStep は1エポックの結果
type EpochStep struct {
	Epoch  int     // 1始まりのエポック番号
	Cost   float64 // 更新前のパラメータでのコスト (1/2n)·Σ(h−y)²
	Params Params  // 更新後のパラメータ
	Grad0  float64 // ∂J/∂θ0
	Grad1  float64 // ∂J/∂θ1
}

// GradientDescent はバッチ勾配降下法のオプティマイザ
//
// 1回の Step で学習データ全体に対して1エポックを実行する。
// 並行呼び出しには対応しない（呼び出し側が同期的に駆動する）。
type GradientDescent struct {
	samples      []dataset.Sample
	learningRate float64
	params       Params
	epoch        int
	err          error

	parallelThreshold int
}

// NewGradientDescent は学習データと学習率からオプティマイザを作成する
//
// パラメータは既定でゼロから開始する。学習率は正の有限値でなければならない。
func NewGradientDescent(train []dataset.Sample, learningRate float64, opts ...Option) (*GradientDescent, error) {
	if !(learningRate > 0) || math.IsInf(learningRate, 0) {
		return nil, errors.NewInvalidConfigError("learning_rate", "must be a positive finite number", learningRate)
	}
	if len(train) == 0 {
		return nil, errors.NewEmptyDatasetError(0, 1)
	}

	gd := &GradientDescent{
		samples:           train,
		learningRate:      learningRate,
		parallelThreshold: parallel.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(gd)
	}
	if !gd.params.Finite() {
		return nil, errors.NewInvalidConfigError("initial_params", "must be finite", gd.params)
	}
	return gd, nil
}

// Params は現在のパラメータ（最後に成功したエポックの値）を返す
func (gd *GradientDescent) Params() Params {
	return gd.params
}

// Epoch は完了したエポック数を返す
func (gd *GradientDescent) Epoch() int {
	return gd.epoch
}

// Diverged は発散を検出済みかどうかを返す
func (gd *GradientDescent) Diverged() bool {
	return gd.err != nil
}

// Step は1エポック分の更新を行う
//
// コストと勾配は更新前のパラメータで計算する。コスト・勾配・更新後の
// パラメータのいずれかが NaN/Inf になった場合、更新は破棄され最後の有限な
// パラメータが保持される。以降の Step は同じ NumericalInstabilityError を返す。
func (gd *GradientDescent) Step() (EpochStep, error) {
	if gd.err != nil {
		return EpochStep{}, gd.err
	}
	epoch := gd.epoch + 1

	cost, grad0, grad1 := gd.costAndGradient(gd.params)
	if err := errors.CheckNumericalStability("gradient", []float64{cost, grad0, grad1}, epoch); err != nil {
		gd.err = err
		return EpochStep{}, err
	}

	next := Params{
		Theta0: gd.params.Theta0 - gd.learningRate*grad0,
		Theta1: gd.params.Theta1 - gd.learningRate*grad1,
	}
	if err := errors.CheckNumericalStability("gradient_update", []float64{next.Theta0, next.Theta1}, epoch); err != nil {
		gd.err = err
		return EpochStep{}, err
	}

	gd.params = next
	gd.epoch = epoch
	return EpochStep{Epoch: epoch, Cost: cost, Params: next, Grad0: grad0, Grad1: grad1}, nil
}

// costAndGradient は J(θ) = (1/2n)·Σ(h−y)² と勾配を計算する
func (gd *GradientDescent) costAndGradient(p Params) (cost, grad0, grad1 float64) {
	samples := gd.samples
	sums := parallel.SumWithThreshold(len(samples), gd.parallelThreshold, 3, func(start, end int, acc []float64) {
		for i := start; i < end; i++ {
			s := samples[i]
			r := p.Theta0 + p.Theta1*s.X - s.Y
			acc[0] += r * r
			acc[1] += r
			acc[2] += r * s.X
		}
	})
	n := float64(len(samples))
	return sums[0] / (2 * n), sums[1] / n, sums[2] / n
}

// Cost は任意のパラメータでの学習データ上のコストを返す
func (gd *GradientDescent) Cost(p Params) float64 {
	c, _, _ := gd.costAndGradient(p)
	return c
}
