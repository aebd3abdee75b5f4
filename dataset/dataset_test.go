package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		wantLen int
		wantErr error
	}{
		{
			name:    "all valid",
			samples: []Sample{{1, 2}, {2, 4}, {3, 6}},
			wantLen: 3,
		},
		{
			name:    "non-finite dropped",
			samples: []Sample{{1, 2}, {math.NaN(), 1}, {2, math.Inf(1)}, {3, 6}},
			wantLen: 2,
		},
		{
			name:    "single sample",
			samples: []Sample{{1, 2}},
			wantErr: errors.ErrEmptyDataset,
		},
		{
			name:    "only non-finite",
			samples: []Sample{{math.NaN(), 1}, {math.Inf(-1), 2}},
			wantErr: errors.ErrEmptyDataset,
		},
		{
			name:    "empty",
			wantErr: errors.ErrEmptyDataset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New(tt.samples)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, ds.Len())
		})
	}
}

func TestStatistics(t *testing.T) {
	ds, err := FromXY([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, ds.MeanX(), 1e-12)
	assert.InDelta(t, 6.0, ds.MeanY(), 1e-12)
	// 母標準偏差
	assert.InDelta(t, math.Sqrt(2), ds.StdX(), 1e-12)
	assert.InDelta(t, 2*math.Sqrt(2), ds.StdY(), 1e-12)

	r, err := ds.Correlation()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	neg, err := FromXY([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.NoError(t, err)
	r, err = neg.Correlation()
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-12)
}

func TestCorrelationUndefined(t *testing.T) {
	ds, err := FromXY([]float64{1, 2, 3}, []float64{5, 5, 5})
	require.NoError(t, err)

	r, err := ds.Correlation()
	assert.True(t, math.IsNaN(r))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDegenerateInput))

	var ue *errors.UndefinedCorrelationError
	require.True(t, errors.As(err, &ue))
	assert.Zero(t, ue.StdY)
}

func TestSamplesAreCopies(t *testing.T) {
	ds, err := FromXY([]float64{1, 2}, []float64{3, 4})
	require.NoError(t, err)

	s := ds.Samples()
	s[0].X = 100
	xs, ys := ds.XY()
	xs[1], ys[1] = -50, -50

	assert.Equal(t, 1.0, ds.Samples()[0].X)
	assert.Equal(t, []Sample{{1, 3}, {2, 4}}, ds.Samples())
	assert.InDelta(t, 1.5, ds.MeanX(), 1e-12)
	assert.InDelta(t, 0.5, ds.StdY(), 1e-12)
	r, err := ds.Correlation()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)
}

func TestRanges(t *testing.T) {
	ds, err := FromXY([]float64{3, -1, 7}, []float64{0, 10, 5})
	require.NoError(t, err)

	lo, hi := ds.XRange()
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 7.0, hi)
	lo, hi = ds.YRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 10.0, hi)
}

func TestFromXYLengthMismatch(t *testing.T) {
	_, err := FromXY([]float64{1, 2}, []float64{1})
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
}

func TestSummary(t *testing.T) {
	ds, err := FromXY([]float64{1, 2, 3}, []float64{2, 4, 9})
	require.NoError(t, err)

	s := ds.Summary()
	assert.Equal(t, 3, s.Samples)
	assert.InDelta(t, 2.0, s.X.Mean, 1e-12)
	assert.InDelta(t, 1.0, s.X.Std, 1e-12) // 標本標準偏差
	assert.Equal(t, 1.0, s.X.Min)
	assert.Equal(t, 9.0, s.Y.Max)
	assert.True(t, s.Correlation.Valid())
}

func TestReadCSV(t *testing.T) {
	const data = "\ufeffhours, score ,note\n" +
		"1,2,a\n" +
		"2,4,b\n" +
		"abc,5,c\n" +
		",7,d\n" +
		"3\n" +
		"NaN,1,e\n" +
		"3,6,f\n" +
		"3,6,dup\n" +
		"100,50,outlier\n" +
		"4,8,g\n"

	t.Run("no cleaning", func(t *testing.T) {
		ds, err := ReadCSV(strings.NewReader(data), "hours", "score")
		require.NoError(t, err)
		assert.Equal(t, 6, ds.Len())

		c := ds.Cleaning()
		assert.Equal(t, 10, c.OriginalRows)
		assert.Equal(t, 6, c.CleanedRows)
		assert.Equal(t, 4, c.RowsRemoved)
		assert.Equal(t, 2, c.DroppedMissing)
		assert.Equal(t, 2, c.DroppedNonNumeric)
		assert.Equal(t, "hours", c.XColumn)
	})

	t.Run("duplicates and outliers", func(t *testing.T) {
		ds, err := ReadCSV(strings.NewReader(data), "hours", "score",
			WithDropDuplicates(), WithOutlierRemoval())
		require.NoError(t, err)

		c := ds.Cleaning()
		assert.Equal(t, 1, c.DroppedDuplicates)
		assert.Equal(t, 1, c.DroppedOutliers)
		assert.Equal(t, 4, ds.Len())
		for _, s := range ds.Samples() {
			assert.NotEqual(t, 100.0, s.X)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(data), "hours", "missing")
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve))
	})

	t.Run("too few valid rows", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("x,y\n1,2\nfoo,bar\n"), "x", "y")
		assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""), "x", "y")
		require.Error(t, err)
	})
}

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("a,b\n1,2\n3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Header)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, "3", tbl.Records[1]["a"])
	_, ok := tbl.Records[1]["b"]
	assert.False(t, ok)
}

func TestFromRecordsColumnValidation(t *testing.T) {
	recs := []map[string]string{{"x": "1", "y": "2"}, {"x": "2", "y": "3"}}

	_, err := FromRecords(recs, "x", "z")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = FromRecords(recs, "", "y")
	assert.True(t, errors.As(err, &ve))

	ds, err := FromRecords(recs, "x", "y")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}
