// Package report renders training charts as PNG images.
package report

import (
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/training"
)

// Default chart size.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

var (
	dataColor      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	fitColor       = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	referenceColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// CostCurve plots cost against epoch. Non-finite costs are skipped.
func CostCurve(history []float64) (*plot.Plot, error) {
	pts := make(plotter.XYs, 0, len(history))
	for i, c := range history {
		if errors.IsFinite(c) {
			pts = append(pts, plotter.XY{X: float64(i + 1), Y: c})
		}
	}
	if len(pts) == 0 {
		return nil, errors.NewValueError("report.CostCurve", "no finite cost to plot")
	}

	p := plot.New()
	p.Title.Text = "Training cost"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "cost"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "cost line")
	}
	line.Color = dataColor
	p.Add(line)
	return p, nil
}

// FitPlot draws the samples with the learned line and, when ref is not
// nil, the closed-form line for comparison.
func FitPlot(samples []dataset.Sample, params linear.Params, ref *linear.ReferenceFit, xLabel, yLabel string) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, errors.NewValueError("report.FitPlot", "no samples to plot")
	}
	pts := make(plotter.XYs, len(samples))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, s := range samples {
		pts[i] = plotter.XY{X: s.X, Y: s.Y}
		lo = math.Min(lo, s.X)
		hi = math.Max(hi, s.X)
	}

	p := plot.New()
	p.Title.Text = params.Equation()
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "sample scatter")
	}
	scatter.GlyphStyle.Color = dataColor
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)
	p.Legend.Add("data", scatter)

	if params.Finite() {
		fit := lineFunc(params, lo, hi)
		fit.Color = fitColor
		fit.Width = vg.Points(2)
		p.Add(fit)
		p.Legend.Add("gradient descent", fit)
	}
	if ref != nil {
		olsLine := lineFunc(ref.Params(), lo, hi)
		olsLine.Color = referenceColor
		olsLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(olsLine)
		p.Legend.Add("least squares", olsLine)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

func lineFunc(params linear.Params, lo, hi float64) *plotter.Function {
	f := plotter.NewFunction(params.Predict)
	f.XMin, f.XMax = lo, hi
	return f
}

// WritePNG encodes p as a PNG of the default size.
func WritePNG(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return errors.Wrap(err, "render png")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}

// SaveCharts writes cost.png and fit.png for res into dir and returns
// the written paths.
func SaveCharts(dir string, res training.Result, samples []dataset.Sample, xLabel, yLabel string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}

	var ref *linear.ReferenceFit
	if res.ReferenceErr == nil {
		r := res.Reference
		ref = &r
	}

	charts := []struct {
		name  string
		build func() (*plot.Plot, error)
	}{
		{"cost.png", func() (*plot.Plot, error) { return CostCurve(res.CostHistory) }},
		{"fit.png", func() (*plot.Plot, error) { return FitPlot(samples, res.Params, ref, xLabel, yLabel) }},
	}

	var written []string
	for _, c := range charts {
		p, err := c.build()
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, c.name)
		if err := p.Save(Width, Height, path); err != nil {
			return written, errors.Wrapf(err, "save %s", path)
		}
		written = append(written, path)
	}
	return written, nil
}
