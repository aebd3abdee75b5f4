package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/linfit/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// outlierFactor is the IQR multiplier used by WithOutlierRemoval.
const outlierFactor = 1.5

// Option configures how raw records are cleaned before they become samples.
type Option func(*loadConfig)

type loadConfig struct {
	dropDuplicates bool
	removeOutliers bool
}

// WithDropDuplicates removes repeated (x, y) pairs, keeping the first occurrence.
func WithDropDuplicates() Option {
	return func(c *loadConfig) {
		c.dropDuplicates = true
	}
}

// WithOutlierRemoval removes samples whose x lies outside
// [Q1 - 1.5·IQR, Q3 + 1.5·IQR].
func WithOutlierRemoval() Option {
	return func(c *loadConfig) {
		c.removeOutliers = true
	}
}

// CleaningSummary reports what ingestion removed.
type CleaningSummary struct {
	OriginalRows      int    `json:"original_rows"`
	CleanedRows       int    `json:"cleaned_rows"`
	RowsRemoved       int    `json:"rows_removed"`
	DroppedMissing    int    `json:"dropped_missing"`
	DroppedNonNumeric int    `json:"dropped_non_numeric"`
	DroppedDuplicates int    `json:"dropped_duplicates"`
	DroppedOutliers   int    `json:"dropped_outliers"`
	XColumn           string `json:"x_column"`
	YColumn           string `json:"y_column"`
}

// Table is a parsed CSV: the header row and one map per data row.
type Table struct {
	Header  []string
	Records []map[string]string
}

// HasColumn reports whether name is in the header.
func (t Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// ReadTable reads a CSV with a header row. Rows may be shorter than the
// header; missing cells read as empty strings.
func ReadTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Table{}, errors.NewValueError("dataset.ReadTable", "csv has no header row")
	}
	if err != nil {
		return Table{}, errors.Wrap(err, "dataset.ReadTable: read header")
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = h
	}

	t := Table{Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, errors.Wrapf(err, "dataset.ReadTable: read row %d", len(t.Records)+2)
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// ReadCSV reads a CSV with a header row and builds a DataSet from the
// columns xCol and yCol.
func ReadCSV(r io.Reader, xCol, yCol string, opts ...Option) (*DataSet, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{xCol, yCol} {
		if !t.HasColumn(col) {
			return nil, errors.NewValidationError("column", "not present in csv header", col)
		}
	}
	return FromRecords(t.Records, xCol, yCol, opts...)
}

// FromRecords builds a DataSet from tabular records.
//
// Records whose selected values are missing, blank or non-numeric are
// skipped, then the optional cleaning steps run in order: duplicates,
// outliers. A column that no record carries is a ValidationError.
func FromRecords(records []map[string]string, xCol, yCol string, opts ...Option) (*DataSet, error) {
	cfg := loadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if xCol == "" || yCol == "" {
		return nil, errors.NewValidationError("column", "x and y columns must be named", [2]string{xCol, yCol})
	}
	if len(records) > 0 {
		for _, col := range []string{xCol, yCol} {
			if !anyHasColumn(records, col) {
				return nil, errors.NewValidationError("column", "not present in records", col)
			}
		}
	}

	summary := CleaningSummary{OriginalRows: len(records), XColumn: xCol, YColumn: yCol}

	samples := make([]Sample, 0, len(records))
	for _, rec := range records {
		xs, xok := rec[xCol]
		ys, yok := rec[yCol]
		xs, ys = strings.TrimSpace(xs), strings.TrimSpace(ys)
		if !xok || !yok || xs == "" || ys == "" {
			summary.DroppedMissing++
			continue
		}
		x, errX := parseFinite(xs)
		y, errY := parseFinite(ys)
		if errX != nil || errY != nil {
			summary.DroppedNonNumeric++
			continue
		}
		samples = append(samples, Sample{X: x, Y: y})
	}

	if cfg.dropDuplicates {
		before := len(samples)
		samples = dropDuplicates(samples)
		summary.DroppedDuplicates = before - len(samples)
	}
	if cfg.removeOutliers && len(samples) > 0 {
		before := len(samples)
		samples = removeOutliers(samples)
		summary.DroppedOutliers = before - len(samples)
	}

	ds, err := New(samples)
	if err != nil {
		return nil, err
	}
	summary.CleanedRows = ds.Len()
	summary.RowsRemoved = summary.OriginalRows - summary.CleanedRows
	ds.cleaning = summary
	return ds, nil
}

func anyHasColumn(records []map[string]string, col string) bool {
	for _, rec := range records {
		if _, ok := rec[col]; ok {
			return true
		}
	}
	return false
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NewValueError("dataset.parse", "non-finite value "+s)
	}
	return v, nil
}

func dropDuplicates(samples []Sample) []Sample {
	seen := make(map[Sample]struct{}, len(samples))
	out := samples[:0:0]
	for _, s := range samples {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func removeOutliers(samples []Sample) []Sample {
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
	}
	sort.Float64s(xs)
	q1 := stat.Quantile(0.25, stat.LinInterp, xs, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, xs, nil)
	iqr := q3 - q1
	lower, upper := q1-outlierFactor*iqr, q3+outlierFactor*iqr

	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.X >= lower && s.X <= upper {
			out = append(out, s)
		}
	}
	return out
}
