// Command linfit trains a single-variable linear regression from a CSV
// file and predicts with saved models.
//
//	linfit train -csv data.csv -x km -y price [-out result.json] [-charts dir] [-model model.json] [-save]
//	linfit predict (-model model.json | -id <stored model id>) 1000 25000
//	linfit models [-user alice]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/YuminosukeSato/linfit/config"
	"github.com/YuminosukeSato/linfit/dataset"
	"github.com/YuminosukeSato/linfit/linear"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
	"github.com/YuminosukeSato/linfit/report"
	"github.com/YuminosukeSato/linfit/storage"
	"github.com/YuminosukeSato/linfit/training"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: linfit <train|predict|models> [flags]")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat, stderr); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	switch args[0] {
	case "train":
		err = trainCmd(ctx, cfg, args[1:], stdout, stderr)
	case "predict":
		err = predictCmd(ctx, cfg, args[1:], stdout, stderr)
	case "models":
		err = modelsCmd(ctx, cfg, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

type trainFlags struct {
	csv, x, y      string
	dropDuplicates bool
	removeOutliers bool
	training       training.Config
	seed           int64
	epochDelay     time.Duration
	progress       int
	out            string
	charts         string
	modelFile      string
	save           bool
	user           string
}

func parseTrainFlags(args []string, stderr io.Writer) (trainFlags, error) {
	var f trainFlags
	def := training.DefaultConfig()

	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.csv, "csv", "", "input CSV file (required)")
	fs.StringVar(&f.x, "x", "", "feature column (required)")
	fs.StringVar(&f.y, "y", "", "target column (required)")
	fs.BoolVar(&f.dropDuplicates, "drop-duplicates", false, "drop repeated (x, y) pairs")
	fs.BoolVar(&f.removeOutliers, "remove-outliers", false, "drop rows whose x lies outside 1.5 IQR")
	fs.Float64Var(&f.training.LearningRate, "lr", def.LearningRate, "learning rate")
	fs.IntVar(&f.training.MaxEpochs, "epochs", def.MaxEpochs, "maximum epochs")
	fs.Float64Var(&f.training.Tolerance, "tol", def.Tolerance, "early stopping tolerance")
	fs.BoolVar(&f.training.EarlyStopping, "early-stopping", def.EarlyStopping, "stop when the cost improvement falls below -tol")
	fs.IntVar(&f.training.Patience, "patience", def.Patience, "consecutive sub-tolerance epochs before stopping")
	fs.Float64Var(&f.training.TrainRatio, "ratio", def.TrainRatio, "train split ratio")
	fs.Int64Var(&f.seed, "seed", -1, "split seed; negative for a random split")
	fs.BoolVar(&f.training.Normalize, "normalize", false, "train on standardized data")
	fs.DurationVar(&f.epochDelay, "delay", 0, "pause between epochs")
	fs.IntVar(&f.progress, "progress", 100, "print every n-th epoch; 0 disables")
	fs.StringVar(&f.out, "out", "", "write the result JSON here instead of stdout")
	fs.StringVar(&f.charts, "charts", "", "write cost.png and fit.png into this directory")
	fs.StringVar(&f.modelFile, "model", "", "write the fitted parameters to this file (.json or gob)")
	fs.BoolVar(&f.save, "save", false, "store the model in the configured database")
	fs.StringVar(&f.user, "user", "", "owner recorded with -save")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.csv == "" || f.x == "" || f.y == "" {
		fs.Usage()
		return f, errors.New("-csv, -x and -y are required")
	}
	if f.seed >= 0 {
		seed := f.seed
		f.training.Seed = &seed
	}
	f.training.EpochDelay = f.epochDelay
	return f, nil
}

func trainCmd(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	f, err := parseTrainFlags(args, stderr)
	if err != nil {
		return err
	}

	ds, err := loadDataSet(f)
	if err != nil {
		return err
	}
	cleaning := ds.Cleaning()
	fmt.Fprintf(stdout, "loaded %d samples from %s (%d rows removed)\n", ds.Len(), f.csv, cleaning.RowsRemoved)

	opts := []training.SessionOption{training.WithLogger(log.GetLogger())}
	if f.progress > 0 {
		opts = append(opts, training.WithObserver(func(e training.EpochState) {
			if e.Epoch%f.progress == 0 || e.Epoch == 1 {
				fmt.Fprintf(stdout, "epoch %6d  cost %.6g  theta0 %.6g  theta1 %.6g  test r2 %s\n",
					e.Epoch, e.Cost, e.Theta0, e.Theta1, formatMetric(float64(e.R2)))
			}
		}))
	}
	sess := training.NewSession(ds, opts...)
	if err := sess.Start(ctx, f.training); err != nil {
		return err
	}
	// Interrupts stop the run through ctx; the partial result is still written.
	res, runErr := sess.Wait(context.Background())

	fmt.Fprintf(stdout, "%s after %d epochs: %s\n", res.Reason, res.TotalEpochs, res.Equation)
	if res.ReferenceErr == nil {
		fmt.Fprintf(stdout, "least squares: %s\n", res.Reference.Equation())
	}

	if err := writeResult(res, f.out, stdout); err != nil {
		return err
	}
	if f.charts != "" {
		paths, err := report.SaveCharts(f.charts, res, ds.Samples(), f.x, f.y)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(stdout, "wrote", p)
		}
	}
	if f.modelFile != "" {
		if err := res.Params.Save(f.modelFile); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "wrote", f.modelFile)
	}
	if f.save {
		store, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL, storage.WithCodec(cfg.ArchiveCodec))
		if err != nil {
			return err
		}
		defer store.Close()
		// ctx may already be cancelled by the interrupt that stopped the run.
		rec, err := store.Save(context.WithoutCancel(ctx), storage.SaveRequest{
			UserID: f.user, FileName: f.csv, XColumn: f.x, YColumn: f.y, Result: res,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "saved model", rec.ID)
	}
	return runErr
}

func loadDataSet(f trainFlags) (*dataset.DataSet, error) {
	file, err := os.Open(f.csv)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", f.csv)
	}
	defer file.Close()

	var opts []dataset.Option
	if f.dropDuplicates {
		opts = append(opts, dataset.WithDropDuplicates())
	}
	if f.removeOutliers {
		opts = append(opts, dataset.WithOutlierRemoval())
	}
	return dataset.ReadCSV(file, f.x, f.y, opts...)
}

func writeResult(res training.Result, path string, stdout io.Writer) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	if path == "" {
		_, err = fmt.Fprintln(stdout, string(b))
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	fmt.Fprintln(stdout, "wrote", path)
	return nil
}

func formatMetric(v float64) string {
	if !errors.IsFinite(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func predictCmd(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modelFile := fs.String("model", "", "parameters file written by train -model")
	modelID := fs.String("id", "", "id of a stored model")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*modelFile == "") == (*modelID == "") {
		return errors.New("exactly one of -model and -id is required")
	}
	if fs.NArg() == 0 {
		return errors.New("at least one x value is required")
	}

	xs := make([]float64, fs.NArg())
	for i, a := range fs.Args() {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil || !errors.IsFinite(v) {
			return errors.NewValidationError("x", "must be a finite number", a)
		}
		xs[i] = v
	}

	var params linear.Params
	if *modelFile != "" {
		p, err := linear.LoadParams(*modelFile)
		if err != nil {
			return err
		}
		params = p
	} else {
		store, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		rec, err := store.Get(ctx, *modelID)
		if err != nil {
			return err
		}
		params = rec.Params()
	}

	fmt.Fprintln(stdout, params.Equation())
	for i, y := range params.PredictBatch(xs) {
		fmt.Fprintf(stdout, "%g\t%g\n", xs[i], y)
	}
	return nil
}

func modelsCmd(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("user", "", "only list this user's models")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	recs, err := store.List(ctx, *user)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Fprintf(stdout, "%s  %s  %-10s %s  (%s, %d epochs)\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.UserID, r.Equation, r.Reason, r.Epochs)
	}
	return nil
}
