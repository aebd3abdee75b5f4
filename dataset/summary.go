package dataset

import (
	"math"

	"github.com/YuminosukeSato/linfit/core/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats describes one column of a DataSet.
type ColumnStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Summary describes both columns and their correlation.
// Correlation is NaN (null in JSON) when it is undefined.
type Summary struct {
	Samples     int             `json:"samples"`
	X           ColumnStats     `json:"x_stats"`
	Y           ColumnStats     `json:"y_stats"`
	Correlation model.NullFloat `json:"correlation"`
	Cleaning    CleaningSummary `json:"cleaning"`
}

// Summary returns column statistics. Std here is the sample (n-1)
// standard deviation, as shown to users; DataSet.StdX/StdY return the
// population values used in computation.
func (d *DataSet) Summary() Summary {
	xs, ys := d.XY()
	corr, _ := d.Correlation()
	return Summary{
		Samples:     d.Len(),
		X:           columnStats(xs),
		Y:           columnStats(ys),
		Correlation: model.NullFloat(corr),
		Cleaning:    d.cleaning,
	}
}

func columnStats(v []float64) ColumnStats {
	mean, std := stat.MeanStdDev(v, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return ColumnStats{
		Mean: mean,
		Std:  std,
		Min:  floats.Min(v),
		Max:  floats.Max(v),
	}
}
