// Package errors はlinfit全体のエラーハンドリングと警告システムを提供します。
// 構造化されたエラー型はすべてcockroachdb/errorsでスタックトレースを付与され、
// zerologのイベントとして構造化出力できます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("linfit-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
// nilを渡すと警告は破棄されます。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrInvalidConfig はハイパーパラメータが不正な場合のエラーです。
	ErrInvalidConfig = New("invalid config")

	// ErrEmptyDataset は有効なサンプルが2件未満の場合のエラーです。
	ErrEmptyDataset = New("empty dataset")

	// ErrInsufficientData は分割後にどちらかの集合が空になる場合のエラーです。
	ErrInsufficientData = New("insufficient data")

	// ErrDegenerateInput は分散ゼロなどで計算が定義できない場合のエラーです。
	ErrDegenerateInput = New("degenerate input")

	// ErrIllegalTransition はセッションの状態遷移が許可されていない場合のエラーです。
	ErrIllegalTransition = New("illegal state transition")

	// ErrDiverged は学習が発散（NaN/Inf）した場合のエラーです。
	ErrDiverged = New("training diverged")

	// ErrUndefinedMetric は評価指標が定義できない場合のエラーです。
	ErrUndefinedMetric = New("undefined metric")

	// ErrNotFound は保存済みモデルやセッションが見つからない場合のエラーです。
	ErrNotFound = New("not found")
)

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は早期終了が有効なのに収束せずに最大エポックへ到達した場合の警告です。
type ConvergenceWarning struct {
	Algorithm string
	Epochs    int
	LastDelta float64
	Tolerance float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s failed to converge after %d epochs (last cost change %.3g, tolerance %.3g). Consider increasing max_epochs or the learning rate.",
		w.Algorithm, w.Epochs, w.LastDelta, w.Tolerance)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("epochs", w.Epochs).
		Float64("last_delta", w.LastDelta).
		Float64("tolerance", w.Tolerance).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, epochs int, lastDelta, tolerance float64) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Epochs: epochs, LastDelta: lastDelta, Tolerance: tolerance}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、目的変数の分散がゼロでR²が定義できない場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// InvalidConfigError は学習設定の検証に失敗した場合のエラーです。
// エポックが1つも実行される前に報告されます。
type InvalidConfigError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("linfit: invalid config '%s': %s (got: %v)", e.Param, e.Reason, e.Value)
}

// Is は errors.Is(err, ErrInvalidConfig) を成立させます。
func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidConfigError")
}

// NewInvalidConfigError は新しいInvalidConfigErrorを作成し、スタックトレースを付与します。
func NewInvalidConfigError(param, reason string, value interface{}) error {
	return errors.WithStack(&InvalidConfigError{Param: param, Reason: reason, Value: value})
}

// EmptyDatasetError は有効なサンプル数が足りない場合のエラーです。
type EmptyDatasetError struct {
	Valid    int
	Required int
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("linfit: dataset has %d valid samples, at least %d required", e.Valid, e.Required)
}

// Is は errors.Is(err, ErrEmptyDataset) を成立させます。
func (e *EmptyDatasetError) Is(target error) bool { return target == ErrEmptyDataset }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyDatasetError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("valid", e.Valid).
		Int("required", e.Required).
		Str("type", "EmptyDatasetError")
}

// NewEmptyDatasetError は新しいEmptyDatasetErrorを作成し、スタックトレースを付与します。
func NewEmptyDatasetError(valid, required int) error {
	return errors.WithStack(&EmptyDatasetError{Valid: valid, Required: required})
}

// InsufficientDataError は分割比率とデータ数の組み合わせで空の集合ができる場合のエラーです。
type InsufficientDataError struct {
	Total int
	Ratio float64
	Train int
	Test  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("linfit: splitting %d samples with train_ratio %.4g gives %d train / %d test; both sides need at least 1 sample",
		e.Total, e.Ratio, e.Train, e.Test)
}

// Is は errors.Is(err, ErrInsufficientData) を成立させます。
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("total", e.Total).
		Float64("ratio", e.Ratio).
		Int("train", e.Train).
		Int("test", e.Test).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError は新しいInsufficientDataErrorを作成し、スタックトレースを付与します。
func NewInsufficientDataError(total int, ratio float64, train, test int) error {
	return errors.WithStack(&InsufficientDataError{Total: total, Ratio: ratio, Train: train, Test: test})
}

// InvalidRatioError は分割比率が(0, 1)の範囲外の場合のエラーです。
type InvalidRatioError struct {
	Ratio float64
}

func (e *InvalidRatioError) Error() string {
	return fmt.Sprintf("linfit: train_ratio must lie in (0, 1), got %v", e.Ratio)
}

// Is は InvalidConfig としても扱えるようにします。
func (e *InvalidRatioError) Is(target error) bool { return target == ErrInvalidConfig }

// NewInvalidRatioError は新しいInvalidRatioErrorを作成し、スタックトレースを付与します。
func NewInvalidRatioError(ratio float64) error {
	return errors.WithStack(&InvalidRatioError{Ratio: ratio})
}

// DegenerateInputError は入力の分散がゼロで閉形式解が求まらない場合のエラーです。
type DegenerateInputError struct {
	Op     string
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("linfit: %s: degenerate input: %s", e.Op, e.Reason)
}

// Is は errors.Is(err, ErrDegenerateInput) を成立させます。
func (e *DegenerateInputError) Is(target error) bool { return target == ErrDegenerateInput }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DegenerateInputError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "DegenerateInputError")
}

// NewDegenerateInputError は新しいDegenerateInputErrorを作成し、スタックトレースを付与します。
func NewDegenerateInputError(op, reason string) error {
	return errors.WithStack(&DegenerateInputError{Op: op, Reason: reason})
}

// UndefinedCorrelationError はどちらかの標準偏差がゼロで相関係数が定義できない場合のエラーです。
type UndefinedCorrelationError struct {
	StdX float64
	StdY float64
}

func (e *UndefinedCorrelationError) Error() string {
	return fmt.Sprintf("linfit: correlation is undefined (std_x=%g, std_y=%g)", e.StdX, e.StdY)
}

// Is は DegenerateInput としても扱えるようにします。
func (e *UndefinedCorrelationError) Is(target error) bool { return target == ErrDegenerateInput }

// NewUndefinedCorrelationError は新しいUndefinedCorrelationErrorを作成し、スタックトレースを付与します。
func NewUndefinedCorrelationError(stdX, stdY float64) error {
	return errors.WithStack(&UndefinedCorrelationError{StdX: stdX, StdY: stdY})
}

// IllegalStateTransitionError はセッションの状態で許されない操作が呼ばれた場合のエラーです。
type IllegalStateTransitionError struct {
	Op   string
	From string
}

func (e *IllegalStateTransitionError) Error() string {
	return fmt.Sprintf("linfit: cannot %s a session in state %s", e.Op, e.From)
}

// Is は errors.Is(err, ErrIllegalTransition) を成立させます。
func (e *IllegalStateTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *IllegalStateTransitionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("from", e.From).
		Str("type", "IllegalStateTransitionError")
}

// NewIllegalStateTransitionError は新しいIllegalStateTransitionErrorを作成し、スタックトレースを付与します。
func NewIllegalStateTransitionError(op, from string) error {
	return errors.WithStack(&IllegalStateTransitionError{Op: op, From: from})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("linfit: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("linfit: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// DimensionError は予測値と正解値の長さが一致しない場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("linfit: %s: length mismatch. Expected %d, got %d", e.Op, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got})
}

// ModelError はモデルの保存・読み込み・アーカイブに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("linfit: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("linfit: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 勾配降下の発散（NaN、Inf）を検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "cost", "gradient_update"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したエポック番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("linfit: numerical instability detected in %s at epoch %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// Is は errors.Is(err, ErrDiverged) を成立させます。
func (e *NumericalInstabilityError) Is(target error) bool { return target == ErrDiverged }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Floats64("values", e.Values).
		Int("epoch", e.Iteration).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Mark はエラーに参照エラーのマークを付け、errors.Is で判定できるようにします。
func Mark(err, reference error) error {
	return errors.Mark(err, reference)
}

// Stacktrace はcockroachdb/errorsが付与したスタックトレースを文字列で返します。
// スタックがない場合は空文字列を返します。
func Stacktrace(err error) string {
	if err == nil {
		return ""
	}
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
