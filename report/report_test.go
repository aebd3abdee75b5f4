package report

import (
	"bytes"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/training"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func samples() []dataset.Sample {
	out := make([]dataset.Sample, 20)
	for i := range out {
		x := float64(i)
		out[i] = dataset.Sample{X: x, Y: 2*x + 1 + 0.3*math.Sin(x)}
	}
	return out
}

func TestCostCurve(t *testing.T) {
	p, err := CostCurve([]float64{5, 3, 2, math.NaN(), 1.5})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(p, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	_, err = CostCurve([]float64{math.Inf(1)})
	assert.Error(t, err)
	_, err = CostCurve(nil)
	assert.Error(t, err)
}

func TestFitPlot(t *testing.T) {
	ref, err := linear.FitOLS(samples())
	require.NoError(t, err)

	p, err := FitPlot(samples(), linear.Params{Theta0: 1.1, Theta1: 1.95}, &ref, "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "y = 1.1000 + 1.9500 * x", p.Title.Text)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(p, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	_, err = FitPlot(nil, linear.Params{}, nil, "x", "y")
	assert.Error(t, err)
}

func TestSaveCharts(t *testing.T) {
	dir := t.TempDir()
	res := training.Result{
		Params:      linear.Params{Theta0: 1, Theta1: 2},
		CostHistory: []float64{4, 2, 1, 0.5},
		State:       training.Completed,
	}
	paths, err := SaveCharts(dir, res, samples(), "x", "y")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, path := range paths {
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, pngMagic), path)
	}
}
