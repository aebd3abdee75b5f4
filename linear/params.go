// Package linear は単回帰モデル y = θ0 + θ1·x の学習（勾配降下法）と
// 閉形式の最小二乗解を提供する
package linear

import (
	"fmt"

	"github.com/YuminosukeSato/linfit/core/model"
	"github.com/YuminosukeSato/linfit/core/parallel"
	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// Params は単回帰モデルのパラメータ
type Params struct {
	Theta0 float64 `json:"theta0"` // 切片
	Theta1 float64 `json:"theta1"` // 傾き
}

var _ model.BatchPredictor = Params{}

// Predict は y = θ0 + θ1·x を返す
func (p Params) Predict(x float64) float64 {
	return p.Theta0 + p.Theta1*x
}

// PredictBatch は入力順に予測値を返す
// 行数が多い場合は並列に計算する
func (p Params) PredictBatch(xs []float64) []float64 {
	out := make([]float64, len(xs))
	parallel.ParallelizeWithThreshold(len(xs), parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = p.Theta0 + p.Theta1*xs[i]
		}
	})
	return out
}

// Equation は "y = θ0 + θ1 * x" 形式の文字列を返す
func (p Params) Equation() string {
	return fmt.Sprintf("y = %.4f + %.4f * x", p.Theta0, p.Theta1)
}

// Finite は両方のパラメータが有限値かどうかを返す
func (p Params) Finite() bool {
	return errors.IsFinite(p.Theta0, p.Theta1)
}

// String implements fmt.Stringer.
func (p Params) String() string {
	return p.Equation()
}

// Save はパラメータをファイルに保存する（.json ならJSON、それ以外はgob）
func (p Params) Save(path string) error {
	return model.SaveModel(p, path)
}

// LoadParams はSaveで保存したパラメータを読み込む
func LoadParams(path string) (Params, error) {
	var p Params
	if err := model.LoadModel(&p, path); err != nil {
		return Params{}, err
	}
	if !p.Finite() {
		return Params{}, errors.NewModelError("LoadParams", "non-finite parameters", nil)
	}
	return p, nil
}
