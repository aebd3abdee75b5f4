package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/linfit/pkg/errors"
)

func TestTestLoggerLevels(t *testing.T) {
	logger := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("test error"), EpochKey, 3)

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !logger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !logger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !logger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !logger.ContainsField("error", "test error") {
		t.Error("Expected leading error to be captured under 'error'")
	}
	if !logger.ContainsField(EpochKey, 3.0) {
		t.Error("Expected epoch field after error")
	}
}

func TestTestLoggerWithAndEnabled(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	child := logger.With(SessionIDKey, "s-1")

	child.Debug("hidden")
	child.Info("visible")

	if logger.ContainsMessage("hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !logger.ContainsField(SessionIDKey, "s-1") {
		t.Error("With fields should be present on child entries")
	}
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should not be enabled")
	}
	if !logger.Enabled(context.Background(), LevelError) {
		t.Error("error should be enabled")
	}
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("tick", "worker", i, EpochKey, j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 400 {
		t.Errorf("expected 400 entries, got %d", len(entries))
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)).With(ComponentKey, "training")
	logger.Debug("not written")
	logger.Info("written", EpochKey, 1)

	out := buf.String()
	if strings.Contains(out, "not written") {
		t.Error("debug should be filtered")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if entry[ComponentKey] != "training" || entry["message"] != "written" || entry[EpochKey] != float64(1) {
		t.Errorf("unexpected entry: %v", entry)
	}
	if logger.Enabled(context.Background(), LevelDebug) || !logger.Enabled(context.Background(), LevelError) {
		t.Error("Enabled should follow the zerolog level")
	}
}

func TestSetupLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)
	defer errors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	if err := SetupLogger("debug", "json", &buf); err != nil {
		t.Fatal(err)
	}

	GetLogger().Error("failed", errors.NewValueError("Evaluate", "empty subset"))
	errors.Warn(errors.NewUndefinedMetricWarning("r2", "zero variance", 0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["level"] != "error" {
		t.Errorf("level = %v, want error", first["level"])
	}
	if _, ok := first["stack"]; !ok {
		t.Error("expected cockroachdb stack to be attached")
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if second["type"] != "UndefinedMetricWarning" {
		t.Errorf("warning should embed its structured fields, got %v", second)
	}

	if err := SetupLogger("verbose", "json", &buf); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetupLogger("info", "xml", &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}
