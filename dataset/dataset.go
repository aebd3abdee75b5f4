// Package dataset holds the paired (x, y) observations a regression is
// trained on, together with their summary statistics.
//
// A DataSet is immutable once built: every accessor returns a copy, so a
// DataSet can be shared by any number of concurrent training sessions.
package dataset

import (
	"math"

	"github.com/YuminosukeSato/linfit/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// MinSamples is the smallest number of valid samples a DataSet accepts.
const MinSamples = 2

// Sample is one (x, y) observation.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DataSet is an ordered, finite collection of samples.
type DataSet struct {
	samples []Sample

	meanX, stdX float64
	meanY, stdY float64

	cov      float64
	cleaning CleaningSummary
}

// New builds a DataSet from samples, dropping any sample whose x or y is
// NaN or ±Inf. Insertion order is preserved.
//
// Fewer than MinSamples remaining samples is an EmptyDatasetError.
func New(samples []Sample) (*DataSet, error) {
	valid := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if errors.IsFinite(s.X, s.Y) {
			valid = append(valid, s)
		}
	}
	if len(valid) < MinSamples {
		return nil, errors.NewEmptyDatasetError(len(valid), MinSamples)
	}

	xs, ys := columns(valid)
	ds := &DataSet{samples: valid}
	ds.cleaning = CleaningSummary{
		OriginalRows:      len(samples),
		CleanedRows:       len(valid),
		RowsRemoved:       len(samples) - len(valid),
		DroppedNonNumeric: len(samples) - len(valid),
	}

	var varX, varY float64
	ds.meanX, varX = stat.PopMeanVariance(xs, nil)
	ds.meanY, varY = stat.PopMeanVariance(ys, nil)
	ds.stdX = math.Sqrt(varX)
	ds.stdY = math.Sqrt(varY)

	// 母共分散 (n で割る)
	n := float64(len(valid))
	ds.cov = stat.Covariance(xs, ys, nil) * (n - 1) / n

	return ds, nil
}

// FromXY is a convenience for building a DataSet from two parallel slices.
func FromXY(xs, ys []float64) (*DataSet, error) {
	if len(xs) != len(ys) {
		return nil, errors.NewDimensionError("dataset.FromXY", len(xs), len(ys))
	}
	samples := make([]Sample, len(xs))
	for i := range xs {
		samples[i] = Sample{X: xs[i], Y: ys[i]}
	}
	return New(samples)
}

// Len returns the number of samples.
func (d *DataSet) Len() int {
	return len(d.samples)
}

// Samples returns a copy of the samples in insertion order.
func (d *DataSet) Samples() []Sample {
	out := make([]Sample, len(d.samples))
	copy(out, d.samples)
	return out
}

// MeanX returns the mean of x.
func (d *DataSet) MeanX() float64 { return d.meanX }

// MeanY returns the mean of y.
func (d *DataSet) MeanY() float64 { return d.meanY }

// StdX returns the population standard deviation of x.
func (d *DataSet) StdX() float64 { return d.stdX }

// StdY returns the population standard deviation of y.
func (d *DataSet) StdY() float64 { return d.stdY }

// XY returns copies of the x and y columns.
func (d *DataSet) XY() (xs, ys []float64) {
	return columns(d.samples)
}

// Cleaning reports how many input rows ingestion removed and why.
func (d *DataSet) Cleaning() CleaningSummary {
	return d.cleaning
}

// Correlation returns the Pearson correlation of x and y.
//
// When either standard deviation is zero the correlation is undefined and
// (NaN, UndefinedCorrelationError) is returned; it is never reported as 0.
func (d *DataSet) Correlation() (float64, error) {
	if d.stdX == 0 || d.stdY == 0 {
		return math.NaN(), errors.NewUndefinedCorrelationError(d.stdX, d.stdY)
	}
	r := d.cov / (d.stdX * d.stdY)
	// 丸め誤差で [-1, 1] を僅かに超えることがある
	return math.Max(-1, math.Min(1, r)), nil
}

// XRange returns the smallest and largest x.
func (d *DataSet) XRange() (lo, hi float64) {
	lo, hi = d.samples[0].X, d.samples[0].X
	for _, s := range d.samples[1:] {
		lo = math.Min(lo, s.X)
		hi = math.Max(hi, s.X)
	}
	return lo, hi
}

// YRange returns the smallest and largest y.
func (d *DataSet) YRange() (lo, hi float64) {
	lo, hi = d.samples[0].Y, d.samples[0].Y
	for _, s := range d.samples[1:] {
		lo = math.Min(lo, s.Y)
		hi = math.Max(hi, s.Y)
	}
	return lo, hi
}

func columns(samples []Sample) (xs, ys []float64) {
	xs = make([]float64, len(samples))
	ys = make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
		ys[i] = s.Y
	}
	return xs, ys
}
