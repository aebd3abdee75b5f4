// Package preprocessing は回帰の前処理（特徴量の標準化）を提供します。
package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/linfit/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// minScale 未満の標準偏差はゼロとみなす
const minScale = 1e-8

// Scaler1D は1変数のzスコア標準化スケーラー
// 値を平均0、標準偏差1（母標準偏差）に変換する
type Scaler1D struct {
	// Mean は学習データの平均値
	Mean float64 `json:"mean"`

	// Scale は学習データの母標準偏差（ゼロの場合は1）
	Scale float64 `json:"scale"`

	fitted bool
}

// NewScaler1D は新しいScaler1Dを作成する
//
// 使用例:
//
//	s := preprocessing.NewScaler1D()
//	if err := s.Fit(xs); err != nil { ... }
//	z := s.Transform(xs[0])
func NewScaler1D() *Scaler1D {
	return &Scaler1D{Scale: 1}
}

// Fit は値の平均と標準偏差を計算する
//
// 非有限値を含む場合や空の場合はエラーを返す。
func (s *Scaler1D) Fit(values []float64) error {
	if len(values) == 0 {
		return errors.NewValueError("Scaler1D.Fit", "empty data")
	}
	if !errors.IsFinite(values...) {
		return errors.NewValueError("Scaler1D.Fit", "values must be finite")
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	s.Mean = mean
	s.Scale = math.Sqrt(variance)

	// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
	if s.Scale < minScale {
		s.Scale = 1
	}
	s.fitted = true
	return nil
}

// IsFitted は学習済みかどうかを返す
func (s *Scaler1D) IsFitted() bool {
	return s.fitted
}

// Transform は値を標準化する
func (s *Scaler1D) Transform(v float64) float64 {
	return (v - s.Mean) / s.Scale
}

// InverseTransform は標準化された値を元のスケールに戻す
func (s *Scaler1D) InverseTransform(z float64) float64 {
	return z*s.Scale + s.Mean
}

// TransformAll はスライス全体を標準化した新しいスライスを返す
func (s *Scaler1D) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

// FitTransform はFitとTransformAllを同時に実行する
func (s *Scaler1D) FitTransform(values []float64) ([]float64, error) {
	if err := s.Fit(values); err != nil {
		return nil, err
	}
	return s.TransformAll(values), nil
}

// String はスケーラーの文字列表現を返す
func (s *Scaler1D) String() string {
	if !s.fitted {
		return "Scaler1D(fitted=false)"
	}
	return fmt.Sprintf("Scaler1D(mean=%.4g, scale=%.4g)", s.Mean, s.Scale)
}

// UnscaleLine は標準化空間の直線 z_y = t0 + t1·z_x を元のスケールの
// y = θ0 + θ1·x に変換する
//
//	θ1 = t1 · σy / σx
//	θ0 = μy + σy·t0 − θ1·μx
func UnscaleLine(t0, t1 float64, x, y *Scaler1D) (theta0, theta1 float64) {
	theta1 = t1 * y.Scale / x.Scale
	theta0 = y.Mean + y.Scale*t0 - theta1*x.Mean
	return theta0, theta1
}

// ScaleLine はUnscaleLineの逆変換
func ScaleLine(theta0, theta1 float64, x, y *Scaler1D) (t0, t1 float64) {
	t1 = theta1 * x.Scale / y.Scale
	t0 = (theta0 + theta1*x.Mean - y.Mean) / y.Scale
	return t0, t1
}
