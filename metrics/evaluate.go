package metrics

import (
	"fmt"

	"github.com/YuminosukeSato/linfit/core/model"
	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scores は一つのモデルを一つのサンプル集合で評価した結果
// R2 は目的変数の分散がゼロの場合 NaN になる
type Scores struct {
	R2   float64
	RMSE float64
	MAE  float64
	MSE  float64
}

// String は評価結果の文字列表現を返す
func (s Scores) String() string {
	return fmt.Sprintf("R²=%.4f RMSE=%.4f MAE=%.4f", s.R2, s.RMSE, s.MAE)
}

// Evaluate はモデル p をサンプル集合で評価する
//
// 副作用はない。R² の分母がゼロの場合は R2=NaN とし、
// UndefinedMetricWarning を errors.Warn で通知する（エラーにはしない）。
// 空の集合は ValueError。
func Evaluate(p model.Predictor, samples []dataset.Sample) (Scores, error) {
	return evaluate(p, samples, true)
}

// Score は Evaluate と同じ計算を行うが、R² が未定義でも警告を出さない
// エポックごとのライブ評価のように同じ警告が繰り返される場面で使う
func Score(p model.Predictor, samples []dataset.Sample) (Scores, error) {
	return evaluate(p, samples, false)
}

func evaluate(p model.Predictor, samples []dataset.Sample, warn bool) (Scores, error) {
	if len(samples) == 0 {
		return Scores{}, errors.NewValueError("Evaluate", "cannot evaluate on an empty sample set")
	}

	n := len(samples)
	xs := make([]float64, n)
	yTrue := mat.NewVecDense(n, nil)
	for i, s := range samples {
		xs[i] = s.X
		yTrue.SetVec(i, s.Y)
	}

	var preds []float64
	if bp, ok := p.(model.BatchPredictor); ok {
		preds = bp.PredictBatch(xs)
	} else {
		preds = make([]float64, n)
		for i, x := range xs {
			preds[i] = p.Predict(x)
		}
	}
	yPred := mat.NewVecDense(n, preds)

	var (
		sc  Scores
		err error
	)
	if sc.MSE, err = MSE(yTrue, yPred); err != nil {
		return Scores{}, err
	}
	if sc.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return Scores{}, err
	}
	if sc.MAE, err = MAE(yTrue, yPred); err != nil {
		return Scores{}, err
	}

	sc.R2, err = R2Score(yTrue, yPred)
	if errors.Is(err, errors.ErrUndefinedMetric) {
		if warn {
			errors.Warn(errors.NewUndefinedMetricWarning("r2", "zero variance in the target values", sc.R2))
		}
		err = nil
	}
	if err != nil {
		return Scores{}, err
	}
	return sc, nil
}
