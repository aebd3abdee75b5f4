package linear

import (
	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/metrics"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ReferenceFit は閉形式の最小二乗解とその評価値
// R2 は目的変数の分散がゼロの場合 NaN
type ReferenceFit struct {
	Theta0 float64
	Theta1 float64
	R2     float64
	RMSE   float64
	MAE    float64
}

// Params は参照解のパラメータを返す
func (r ReferenceFit) Params() Params {
	return Params{Theta0: r.Theta0, Theta1: r.Theta1}
}

// Equation は参照解の式を返す
func (r ReferenceFit) Equation() string {
	return r.Params().Equation()
}

// FitOLS は最小二乗法で単回帰を解き、同じサンプルで評価する
//
//	θ1 = Sxy / Sxx
//	θ0 = ȳ − θ1·x̄
//
// サンプルが2件未満、または x の分散がゼロの場合は DegenerateInputError。
// 決定的で状態を持たない。
func FitOLS(samples []dataset.Sample) (ReferenceFit, error) {
	if len(samples) < dataset.MinSamples {
		return ReferenceFit{}, errors.NewDegenerateInputError("FitOLS", "at least 2 samples are required")
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
		ys[i] = s.Y
	}
	if !errors.IsFinite(xs...) || !errors.IsFinite(ys...) {
		return ReferenceFit{}, errors.NewDegenerateInputError("FitOLS", "samples must be finite")
	}

	// Sxx = 0 では傾きが定まらない
	if _, variance := stat.PopMeanVariance(xs, nil); variance == 0 {
		return ReferenceFit{}, errors.NewDegenerateInputError("FitOLS", "x has zero variance")
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	p := Params{Theta0: alpha, Theta1: beta}
	if !p.Finite() {
		return ReferenceFit{}, errors.NewDegenerateInputError("FitOLS", "least-squares solution is not finite")
	}

	sc, err := metrics.Evaluate(p, samples)
	if err != nil {
		return ReferenceFit{}, err
	}
	return ReferenceFit{Theta0: alpha, Theta1: beta, R2: sc.R2, RMSE: sc.RMSE, MAE: sc.MAE}, nil
}
