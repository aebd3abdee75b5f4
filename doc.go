// Package linfit fits a single-variable linear model y = θ0 + θ1·x by batch
// gradient descent and lets callers watch, pause and stop the run while it
// trains.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/linfit/dataset"
//	    "github.com/YuminosukeSato/linfit/training"
//	)
//
//	func main() {
//	    ds, err := dataset.FromXY([]float64{1, 2, 3, 4}, []float64{3, 5, 7, 9})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    s := training.NewSession(ds)
//	    if err := s.Start(context.Background(), training.DefaultConfig()); err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := s.Wait(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.Equation, res.Reason)
//	}
//
// # Packages
//
//   - dataset: CSV ingestion, cleaning, statistics and train/test splitting
//   - linear: gradient descent optimizer, stopping policy, closed-form reference fit
//   - metrics: R², RMSE, MAE and MSE
//   - training: the TrainingSession state machine and its events
//   - preprocessing: z-score scaling used by normalized training
//   - storage: gorm-backed model store (PostgreSQL or SQLite)
//   - report: cost curve and fit charts
//   - server: HTTP and websocket API
//   - core/model, core/parallel: shared interfaces and chunked parallel sums
//   - pkg/errors, pkg/log: error types and structured logging
//
// The cmd/linfit and cmd/linfit-server binaries wrap these packages.
package linfit
