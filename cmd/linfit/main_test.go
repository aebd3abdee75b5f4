package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("km,price\n")
	for i := 0; i < 40; i++ {
		x := float64(i) / 8
		fmt.Fprintf(&b, "%g,%g\n", x, 1.5*x-4)
	}
	b.WriteString("n/a,3\n")
	path := filepath.Join(dir, "cars.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func setEnv(t *testing.T, dir string) {
	t.Setenv("LINFIT_LOG_LEVEL", "error")
	t.Setenv("LINFIT_DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "models.db"))
	t.Setenv("LINFIT_ARCHIVE_CODEC", "s2")
}

func TestTrainPredictAndModels(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)
	csv := writeCSV(t, dir)
	outPath := filepath.Join(dir, "result.json")
	modelPath := filepath.Join(dir, "model.json")
	chartDir := filepath.Join(dir, "charts")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"train", "-csv", csv, "-x", "km", "-y", "price",
		"-lr", "0.05", "-epochs", "5000", "-tol", "1e-12", "-seed", "3", "-progress", "500",
		"-out", outPath, "-model", modelPath, "-charts", chartDir, "-save", "-user", "bob",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "loaded 40 samples")
	assert.Contains(t, out, "epoch      1")
	assert.Contains(t, out, "saved model")

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal(b, &res))
	assert.InDelta(t, 1.5, res["final_theta1"], 0.01)
	assert.InDelta(t, -4, res["final_theta0"], 0.02)
	assert.Equal(t, "completed", res["state"])

	for _, name := range []string{"cost.png", "fit.png"} {
		_, err := os.Stat(filepath.Join(chartDir, name))
		assert.NoError(t, err, name)
	}

	stdout.Reset()
	code = run(context.Background(), []string{"predict", "-model", modelPath, "2", "4"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "y = "))
	assert.True(t, strings.HasPrefix(lines[1], "2\t-0.99") || strings.HasPrefix(lines[1], "2\t-1"), lines[1])

	stdout.Reset()
	code = run(context.Background(), []string{"models", "-user", "bob"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	fields := strings.Fields(stdout.String())
	require.NotEmpty(t, fields)
	id := fields[0]

	stdout.Reset()
	code = run(context.Background(), []string{"predict", "-id", id, "4"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "4\t")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"fit"}, 2},
		{"missing columns", []string{"train", "-csv", "x.csv"}, 1},
		{"missing file", []string{"train", "-csv", filepath.Join(dir, "nope.csv"), "-x", "a", "-y", "b"}, 1},
		{"bad learning rate", []string{"train", "-csv", writeCSV(t, dir), "-x", "km", "-y", "price", "-lr", "0"}, 1},
		{"predict without model", []string{"predict", "1"}, 1},
		{"predict bad x", []string{"predict", "-model", "m.json", "abc"}, 1},
		{"help", []string{"help"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(context.Background(), tt.args, &stdout, &stderr), stderr.String())
		})
	}
}

func TestTrainInterruptedStillSaves(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)
	csv := writeCSV(t, dir)

	// 割り込み済みのコンテキストでも途中結果は保存される
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"train", "-csv", csv, "-x", "km", "-y", "price", "-save", "-user", "carol"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "stopped after 0 epochs")
	assert.Contains(t, stdout.String(), "saved model")

	stdout.Reset()
	code = run(context.Background(), []string{"models", "-user", "carol"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.NotEmpty(t, strings.TrimSpace(stdout.String()))
}

func TestFlagErrorsGoToStderr(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)

	for _, cmd := range []string{"train", "predict", "models"} {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{cmd, "-bogus"}, &stdout, &stderr)
		assert.Equal(t, 1, code, cmd)
		assert.Contains(t, stderr.String(), "-bogus", cmd)
	}
}
